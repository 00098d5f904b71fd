package timebank

import (
	"errors"
	"testing"
)

func TestWindowHours(t *testing.T) {
	cases := []struct {
		name  string
		w     Window
		hours float64
		ok    bool
	}{
		{"two hours", Window{Date: "2024-06-01", Start: "09:00", End: "11:00"}, 2.0, true},
		{"half hour", Window{Date: "2024-06-01", Start: "09:00", End: "09:30"}, 0.5, true},
		{"reversed", Window{Date: "2024-06-01", Start: "11:00", End: "09:00"}, 0, false},
		{"zero length", Window{Date: "2024-06-01", Start: "09:00", End: "09:00"}, 0, false},
		{"missing fields", Window{Date: "2024-06-01"}, 0, false},
		{"bad time", Window{Date: "2024-06-01", Start: "9am", End: "11:00"}, 0, false},
		{"bad date", Window{Date: "June 1st", Start: "09:00", End: "11:00"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hours, err := tc.w.Hours()
			if tc.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if hours != tc.hours {
					t.Fatalf("hours = %v, want %v", hours, tc.hours)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("want ValidationError, got %v", err)
			}
		})
	}
}

func TestValidateDurationEpsilon(t *testing.T) {
	// 1.5h need against a 09:00-10:30 window: float arithmetic lands within
	// the tolerance and must pass.
	w := Window{Date: "2024-06-01", Start: "09:00", End: "10:30"}
	if _, err := ValidateDuration(KindNeed, 1.5, w); err != nil {
		t.Fatalf("exact match within epsilon: %v", err)
	}
	if _, err := ValidateDuration(KindNeed, 1.6, w); err == nil {
		t.Fatal("0.1h mismatch must fail")
	}
}
