package core

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidMonth = errors.New("invalid month: want YYYY-MM")

// Month is a calendar month key ("2026-03"). The zero value is not a valid
// month; parse or construct one before use.
type Month struct {
	Year int
	Mon  int // 1..12
}

// ParseMonth parses a YYYY-MM key. The month number must be in [1,12].
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return Month{Year: t.Year(), Mon: int(t.Month())}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: int(t.Month())}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Mon)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}

// Add returns the month offset by n steps, which may be negative. Year
// boundaries wrap correctly.
func (m Month) Add(n int) Month {
	idx := m.Year*12 + (m.Mon - 1) + n
	y := idx / 12
	mo := idx % 12
	if mo < 0 {
		mo += 12
		y--
	}
	return Month{Year: y, Mon: mo + 1}
}

// Diff returns the signed number of month steps from m to other. Zero when
// the months are equal.
func (m Month) Diff(other Month) int {
	return (other.Year-m.Year)*12 + (other.Mon - m.Mon)
}

func (m Month) Compare(other Month) int {
	switch d := m.Diff(other); {
	case d > 0:
		return -1
	case d < 0:
		return 1
	default:
		return 0
	}
}

func (m Month) Before(other Month) bool { return m.Compare(other) < 0 }

func (m Month) After(other Month) bool { return m.Compare(other) > 0 }

// Days returns the number of days in the month.
func (m Month) Days() int {
	return time.Date(m.Year, time.Month(m.Mon)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Date maps a day-of-month onto a concrete date within the month, clamping
// day into [1, Days]. Day 31 in February resolves to the last day of February.
func (m Month) Date(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := m.Days(); day > last {
		day = last
	}
	return time.Date(m.Year, time.Month(m.Mon), day, 0, 0, 0, 0, time.UTC)
}
