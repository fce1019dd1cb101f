/*
Package domain contains the core data model of the tickler pipeline.

It defines the values that flow between the pipeline stages and the record
of a finished run. The package is kept pure and free of I/O so that every
adapter (model clients, handlers, stores, intake servers) can depend on it
without pulling in the others.

# Key Entities

  - RawInput: The unstructured text submitted for processing.
  - ModelRequest / ModelResponse: The prompt sent to the model and its opaque completion.
  - Completion / ExtractedItem: The parsed completion, one item per action the model asked for.
  - ItemOutcome: What happened to a single item (succeeded, skipped or failed).
  - RunResult / RunRecord: The terminal record of a run and its serializable form.
*/
package domain
