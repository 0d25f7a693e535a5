package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only textual form dates take in the store.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component. The zero value means absent.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Present reports whether the date is set.
func (d Date) Present() bool {
	return !d.Time.IsZero()
}

// Before reports whether d is strictly earlier than other. Absent dates are never before anything.
func (d Date) Before(other Date) bool {
	if !d.Present() || !other.Present() {
		return false
	}
	return d.Time.Before(other.Time)
}

func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

func (d Date) String() string {
	if !d.Present() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// UnmarshalJSON implements the json.Unmarshaler interface for Date.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse date '%s': %w", s, err)
	}
	d.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Date.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}
