package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want Month
		ok   bool
	}{
		{"2026-02", Month{2026, 2}, true},
		{"2026-12", Month{2026, 12}, true},
		{"1999-01", Month{1999, 1}, true},
		{"2026-13", Month{}, false},
		{"2026-00", Month{}, false},
		{"2026-2", Month{}, false},
		{"202602", Month{}, false},
		{"2026-02-01", Month{}, false},
		{"", Month{}, false},
	}
	for _, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseMonth(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseMonth(%q) expected error", tc.in)
		}
		if !errors.Is(err, ErrInvalidMonth) {
			t.Fatalf("ParseMonth(%q) error = %v, want ErrInvalidMonth", tc.in, err)
		}
	}
}

func TestMonthAdd(t *testing.T) {
	cases := []struct {
		in     string
		offset int
		want   string
	}{
		{"2026-02", 1, "2026-03"},
		{"2026-12", 1, "2027-01"},
		{"2026-01", -1, "2025-12"},
		{"2026-06", 0, "2026-06"},
		{"2026-03", 14, "2027-05"},
		{"2026-03", -27, "2023-12"},
	}
	for _, tc := range cases {
		m, err := ParseMonth(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Add(tc.offset).String(); got != tc.want {
			t.Errorf("%s.Add(%d) = %s, want %s", tc.in, tc.offset, got, tc.want)
		}
	}
}

func TestMonthDiff(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2026-02", "2026-05", 3},
		{"2026-05", "2026-02", -3},
		{"2025-11", "2026-02", 3},
		{"2026-07", "2026-07", 0},
	}
	for _, tc := range cases {
		a, _ := ParseMonth(tc.a)
		b, _ := ParseMonth(tc.b)
		if got := a.Diff(b); got != tc.want {
			t.Errorf("Diff(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMonthAddDiffRoundTrip(t *testing.T) {
	m := Month{2024, 7}
	for offset := -30; offset <= 30; offset++ {
		if got := m.Diff(m.Add(offset)); got != offset {
			t.Fatalf("Diff(Add(%d)) = %d", offset, got)
		}
	}
}

func TestMonthDate(t *testing.T) {
	cases := []struct {
		month string
		day   int
		want  string
	}{
		{"2026-02", 31, "2026-02-28"}, // clamped to end of February
		{"2024-02", 30, "2024-02-29"}, // leap year
		{"2026-04", 31, "2026-04-30"},
		{"2026-01", 15, "2026-01-15"},
		{"2026-01", 0, "2026-01-01"}, // clamped up
		{"2026-01", -4, "2026-01-01"},
	}
	for _, tc := range cases {
		m, err := ParseMonth(tc.month)
		if err != nil {
			t.Fatal(err)
		}
		if got := m.Date(tc.day).Format(time.DateOnly); got != tc.want {
			t.Errorf("%s.Date(%d) = %s, want %s", tc.month, tc.day, got, tc.want)
		}
	}
}

func TestMonthOrdering(t *testing.T) {
	a := Month{2026, 2}
	b := Month{2026, 3}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Error("Before ordering broken")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After ordering broken")
	}
	if a.Compare(a) != 0 {
		t.Error("Compare(self) != 0")
	}
}
