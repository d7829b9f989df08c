package domain

import "time"

type BookingAction string

const (
	BookingActionBook   BookingAction = "book"
	BookingActionCancel BookingAction = "cancel"
	BookingActionUpdate BookingAction = "update"
)

// BookingEvent notifies every instance that booked state changed. Consumers
// only use it as an invalidation trigger; the payload is informational.
type BookingEvent struct {
	BookingID  string        `json:"booking_id"`
	Action     BookingAction `json:"action"`
	OccurredAt time.Time     `json:"occurred_at"`
}
