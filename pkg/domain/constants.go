package domain

// Parameter keys understood by the reminder tool.
const (
	ParamSubject       = "subject"
	ParamStartDatetime = "start_datetime"
	ParamEndDatetime   = "end_datetime"
	ParamLocation      = "location"
	ParamBody          = "body"
	ParamRawBody       = "raw_body"
)
