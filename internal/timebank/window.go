package timebank

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Window is a proposed time slot on a single day.
type Window struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Hours returns the window's duration in hours. The end must be after the
// start on the same day.
func (w Window) Hours() (float64, error) {
	if w.Date == "" || w.Start == "" || w.End == "" {
		return 0, &ValidationError{Reason: "date, start time, and end time are required"}
	}
	if _, err := time.Parse(dateLayout, w.Date); err != nil {
		return 0, &ValidationError{Reason: "invalid date format, use YYYY-MM-DD"}
	}
	start, err := time.Parse(timeLayout, w.Start)
	if err != nil {
		return 0, &ValidationError{Reason: "invalid start time format, use HH:MM"}
	}
	end, err := time.Parse(timeLayout, w.End)
	if err != nil {
		return 0, &ValidationError{Reason: "invalid end time format, use HH:MM"}
	}
	hours := end.Sub(start).Hours()
	if hours <= 0 {
		return 0, &ValidationError{Reason: "end time must be after start time"}
	}
	return hours, nil
}

// ValidateDuration applies the service-kind duration rule to a window:
// needs must match hoursRequired exactly (within a small epsilon), offers
// may run anywhere from MinOfferHours to MaxOfferHours inclusive.
func ValidateDuration(kind ServiceKind, hoursRequired float64, w Window) (float64, error) {
	hours, err := w.Hours()
	if err != nil {
		return 0, err
	}
	switch kind {
	case KindOffer:
		if hours < MinOfferHours {
			return 0, &ValidationError{Reason: fmt.Sprintf("proposed duration must be at least %.0f hour for offers", MinOfferHours)}
		}
		if hours > MaxOfferHours {
			return 0, &ValidationError{Reason: fmt.Sprintf("proposed duration cannot exceed %.0f hours for offers", MaxOfferHours)}
		}
	default:
		if diff := hours - hoursRequired; diff > hoursEpsilon || diff < -hoursEpsilon {
			return 0, &ValidationError{Reason: fmt.Sprintf("this service requires %.1f hour(s); the proposed window is %.1f hour(s), adjust the start or end time", hoursRequired, hours)}
		}
	}
	return hours, nil
}
