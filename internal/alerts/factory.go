package alerts

import (
	"math"
	"time"

	"hazard-alerts/internal/events"
)

// ActivationTime computes the absolute activation time of criterion c for an
// event expiring at expiration, evaluated at now.
//
//	PERCENT:      expiration - ((100 - threshold) / 100) * (expiration - now)
//	FIXED_OFFSET: expiration - threshold ms
//
// A FIXED_OFFSET larger than the remaining time yields an instant before now.
// The value is not clamped; callers clamp only the scheduling delay.
func ActivationTime(c Criterion, expiration, now time.Time) time.Time {
	switch c.Units {
	case UnitsFixedOffset:
		return expiration.Add(-c.Offset())
	default:
		remaining := expiration.Sub(now)
		fraction := (100 - c.Threshold) / 100
		return expiration.Add(-time.Duration(math.Round(fraction * float64(remaining))))
	}
}

// DeactivationTime returns the instant after which an alert for an event
// expiring at expiration is no longer relevant.
func DeactivationTime(expiration time.Time, delay time.Duration) time.Time {
	return expiration.Add(delay)
}

// BuildAlerts constructs one Scheduled alert per manifestation of c.
// Unknown manifestations are skipped; criteria are validated on load.
func BuildAlerts(c Criterion, event *events.HazardEvent, activation, deactivation time.Time) []Alert {
	out := make([]Alert, 0, len(c.Manifestations))
	for _, m := range c.Manifestations {
		kind, ok := KindFor(m)
		if !ok {
			continue
		}
		out = append(out, Alert{
			EventID:          event.EventID,
			Criterion:        c,
			Kind:             kind,
			HazardExpiration: event.ExpirationTime,
			HazardEnd:        event.EndTime,
			ActivationTime:   activation,
			DeactivationTime: deactivation,
			State:            StateScheduled,
		})
	}
	return out
}
