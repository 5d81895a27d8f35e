package canonical

import (
	"encoding/json"
	"time"
)

// =============================================================================
// DATE - Day-granularity time point, zero value means "missing"
// =============================================================================

// Date is a calendar day in UTC. The zero value represents a missing date:
// a missing PeriodStart excludes a charge from expansion, a missing
// PeriodEnd marks a one-time/open-ended charge.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.normalize().Format("2006-01-02")
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when missing.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return err
	}
	*d = Date{Time: t}
	return nil
}

// =============================================================================
// MONTH - Calendar month, normalized to the first day
// =============================================================================

// Month is the audit time bucket. It is always the first calendar day of the
// month at midnight UTC. The zero value means "missing".
type Month struct {
	Time time.Time
}

func NewMonth(year int, month time.Month) Month {
	return Month{Time: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// MonthOf truncates a date to its month. A zero date yields a zero month.
func MonthOf(d Date) Month {
	if d.IsZero() {
		return Month{}
	}
	return NewMonth(d.Time.Year(), d.Time.Month())
}

// CurrentMonth returns the month containing the wall-clock now.
func CurrentMonth() Month {
	now := time.Now().UTC()
	return NewMonth(now.Year(), now.Month())
}

func (m Month) IsZero() bool { return m.Time.IsZero() }

func (m Month) normalize() time.Time {
	return time.Date(m.Time.Year(), m.Time.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Comparison
func (m Month) Before(other Month) bool { return m.normalize().Before(other.normalize()) }
func (m Month) After(other Month) bool  { return m.normalize().After(other.normalize()) }
func (m Month) Equal(other Month) bool  { return m.normalize().Equal(other.normalize()) }
func (m Month) BeforeOrEqual(other Month) bool { return !m.After(other) }
func (m Month) AfterOrEqual(other Month) bool  { return !m.Before(other) }

// Arithmetic
func (m Month) AddMonths(n int) Month {
	t := m.normalize().AddDate(0, n, 0)
	return NewMonth(t.Year(), t.Month())
}

// First returns the first day of the month as a Date.
func (m Month) First() Date {
	if m.IsZero() {
		return Date{}
	}
	t := m.normalize()
	return Date{Time: t}
}

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return m.normalize().Format("2006-01-02")
}

// MarshalJSON encodes the month as its first day, "YYYY-MM-01".
func (m Month) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(b []byte) error {
	var d Date
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = MonthOf(d)
	return nil
}
