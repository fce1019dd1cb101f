/*
Package ports defines the driven ports (interfaces) of the tickler pipeline.

These interfaces decouple the core from external implementations, so the same
pipeline can run against different model providers, mail transports and
history stores.

# Key Interfaces

  - ModelClient: Sends a ModelRequest to a generative model and returns its completion.
  - Mailer: Delivers a prepared message (used by the reminder handler).
  - RunStore: Persists the record of finished runs.
*/
package ports
