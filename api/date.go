package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the format due dates are written in.
const DateLayout = "2006-01-02T15:04:05"

var dateLayouts = []string{
	time.RFC3339Nano,
	DateLayout,
	"2006-01-02",
}

// Date is a due date. It accepts plain dates, zone-less timestamps and
// RFC 3339 on input and always writes UTC in DateLayout.
type Date struct {
	time.Time
}

func NewDate(t time.Time) *Date {
	return &Date{Time: t.UTC()}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("due date must be a string: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDate parses s with each accepted layout in turn.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", s)
}
