/*
Package tickler turns free-form text into calendar reminders with the help of a
large language model.

A run goes through a fixed pipeline: the input is wrapped into a prompt that
carries the current time, the model is asked for a JSON list of function calls,
the answer is checked for structure, and every extracted item is dispatched to
the handler registered for its tool name. Model calls and structural checks are
retried together under one bounded backoff policy; handlers are never retried.

# Usage

	client := bedrock.NewFromConfig(awsCfg)

	mailer := ses.NewFromConfig(awsCfg, logger)
	reminders, err := reminder.NewHandler(reminder.Config{
		Sender:    "assistant@example.com",
		Recipient: "me@example.com",
		Location:  loc,
	}, mailer)
	if err != nil {
		log.Fatal(err)
	}

	engine, err := tickler.New(client,
		tickler.WithTimezone(loc),
		tickler.WithHandler(domain.ToolCreateCalendarReminder, reminders.Handle),
	)
	if err != nil {
		log.Fatal(err)
	}

	result, err := engine.RunText(ctx, "Dentist next Friday at 10")

A Completed run returns a nil error even when individual items failed; inspect
result.Outcomes for per-item status. A Failed run returns a
*domain.ModelInvocationError, *domain.ParseError or *domain.CancelledError.
*/
package tickler
