package ledger

import (
	"strings"
	"time"

	"github.com/yfarmers/feedledger/internal/shared"
)

// KeyLayout is the partition-key encoding of a ledger day (DD-MM-YYYY).
const KeyLayout = "02-01-2006"

const isoLayout = "2006-01-02"

// Date is a calendar day without time of day or zone.
type Date struct {
	t time.Time
}

// NewDate returns the given calendar day. Out-of-range values are normalised like time.Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate accepts DD-MM-YYYY keys and ISO YYYY-MM-DD input.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{KeyLayout, isoLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return Date{t: t}, nil
		}
	}
	return Date{}, shared.NewValidationError("date", "must be DD-MM-YYYY or YYYY-MM-DD")
}

// Key returns the DD-MM-YYYY partition key.
func (d Date) Key() string {
	return d.t.Format(KeyLayout)
}

// ISO returns the YYYY-MM-DD form.
func (d Date) ISO() string {
	return d.t.Format(isoLayout)
}

func (d Date) String() string {
	return d.Key()
}

// Prev is the previous calendar day.
func (d Date) Prev() Date {
	return Date{t: d.t.AddDate(0, 0, -1)}
}

// Next is the following calendar day.
func (d Date) Next() Date {
	return Date{t: d.t.AddDate(0, 0, 1)}
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return d.t
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	return d.t.Before(o.t)
}

// Equal reports whether both values name the same day.
func (d Date) Equal(o Date) bool {
	return d.t.Equal(o.t)
}

// IsZero reports whether d is unset.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// MarshalText encodes the partition key.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.Key()), nil
}

// UnmarshalText decodes either accepted layout.
func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
