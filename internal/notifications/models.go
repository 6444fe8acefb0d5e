package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BookingEvent is the message published for each booking lifecycle transition.
// Downstream consumers render customer emails and ops dashboards from it.
type BookingEvent struct {
	ID        uuid.UUID `json:"id"`
	Event     string    `json:"event"` // booking_confirmed, booking_cancelled, booking_expired
	BookingID uuid.UUID `json:"booking_id"`
	Reference string    `json:"reference"`
	TripID    uuid.UUID `json:"trip_id"`
	Status    string    `json:"status"`

	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`

	SeatCodes []string `json:"seat_codes"`
	Total     int64    `json:"total"`
	Currency  string   `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
}

// ToJSON serializes the event for the wire
func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// PartitionKey keeps all events for one booking on the same partition so
// consumers see them in order.
func (e *BookingEvent) PartitionKey() string {
	return e.BookingID.String()
}
