/*
Package reminder implements the create-calendar-reminder handler.

The handler turns the parameters of one extracted item into a calendar
invitation (an iCalendar METHOD:REQUEST event) and mails it to the configured
recipient. Sender, recipient and time zone are passed in explicitly; nothing is
read from the environment.

Expected parameters:

	subject         required, the event title
	start_datetime  required, e.g. 2024-03-02T15:00:00 (interpreted in the configured time zone)
	end_datetime    optional, defaults to one hour after the start
	location        optional, defaults to N/A
	body            optional, the summary shown in the invitation
	raw_body        optional, the original text, quoted below the summary
*/
package reminder
