package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DefaultDuration is used when an item carries no end time.
const DefaultDuration = time.Hour

// LocationUnknown is what the model writes when it could not find a place.
const LocationUnknown = "N/A"

// dateLayouts are tried in order. Layouts without an offset are read in the
// handler's time zone.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Params are the raw parameters of a reminder item.
type Params struct {
	Subject       string `mapstructure:"subject"`
	StartDatetime string `mapstructure:"start_datetime"`
	EndDatetime   string `mapstructure:"end_datetime"`
	Location      string `mapstructure:"location"`
	Body          string `mapstructure:"body"`
	RawBody       string `mapstructure:"raw_body"`
}

// Reminder is a validated, time-resolved reminder.
type Reminder struct {
	Subject  string
	Start    time.Time
	End      time.Time
	Location string
	Body     string
	RawBody  string
}

// Decode reads item parameters. Unknown keys are ignored and scalar values
// are converted to strings.
func Decode(params map[string]any) (Params, error) {
	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(params); err != nil {
		return p, fmt.Errorf("decode parameters: %w", err)
	}
	return p, nil
}

// Resolve validates p and parses its times in loc.
func (p Params) Resolve(loc *time.Location) (Reminder, error) {
	subject := strings.TrimSpace(p.Subject)
	if subject == "" {
		return Reminder{}, fmt.Errorf("missing required parameter %q", domain.ParamSubject)
	}
	if strings.TrimSpace(p.StartDatetime) == "" {
		return Reminder{}, fmt.Errorf("missing required parameter %q", domain.ParamStartDatetime)
	}

	start, err := ParseTime(p.StartDatetime, loc)
	if err != nil {
		return Reminder{}, fmt.Errorf("%s: %w", domain.ParamStartDatetime, err)
	}

	end := start.Add(DefaultDuration)
	if strings.TrimSpace(p.EndDatetime) != "" {
		end, err = ParseTime(p.EndDatetime, loc)
		if err != nil {
			return Reminder{}, fmt.Errorf("%s: %w", domain.ParamEndDatetime, err)
		}
	}
	if end.Before(start) {
		return Reminder{}, fmt.Errorf("end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	location := strings.TrimSpace(p.Location)
	if location == "" {
		location = LocationUnknown
	}

	return Reminder{
		Subject:  subject,
		Start:    start,
		End:      end,
		Location: location,
		Body:     strings.TrimSpace(p.Body),
		RawBody:  p.RawBody,
	}, nil
}

// ParseTime reads a structured timestamp. It does not understand natural language.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", value)
}
