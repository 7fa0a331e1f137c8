package models

import (
	"fmt"
	"time"
)

type Guest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type Reservation struct {
	ID              string     `json:"id"`
	HotelID         string     `json:"hotel_id"`
	RoomNumber      string     `json:"room_number"`
	CheckInDate     string     `json:"check_in_date"`
	CheckOutDate    string     `json:"check_out_date"`
	Status          string     `json:"status"`
	ContactName     string     `json:"contact_name"`
	ContactLastName string     `json:"contact_last_name"`
	ContactPhone    string     `json:"contact_phone"`
	Notes           string     `json:"notes"`
	UserID          string     `json:"user_id"`
	CreatedOn       time.Time  `json:"created_on"`
	ModifiedOn      time.Time  `json:"modified_on"`
	ModifiedBy      string     `json:"modified_by"`
	IsDeleted       bool       `json:"is_deleted"`
	DeletedOn       *time.Time `json:"deleted_on,omitempty"`
	DeletedBy       string     `json:"deleted_by,omitempty"`
	GuestCount      int        `json:"guest_count"`
	Guests          []Guest    `json:"guests"`
}

// ReservationDraft is the input of a booking action.
type ReservationDraft struct {
	ID              string  `json:"reservation_id"`
	RoomNumber      string  `json:"room_number"`
	CheckInDate     string  `json:"check_in_date"`
	CheckOutDate    string  `json:"check_out_date"`
	Status          string  `json:"status"`
	ContactName     string  `json:"contact_name"`
	ContactLastName string  `json:"contact_last_name"`
	ContactPhone    string  `json:"contact_phone"`
	Notes           string  `json:"notes"`
	Guests          []Guest `json:"guests"`
}

// ReservationPatch carries a partial update. Nil fields are left untouched.
type ReservationPatch struct {
	RoomNumber      *string `json:"room_number,omitempty"`
	CheckInDate     *string `json:"check_in_date,omitempty"`
	CheckOutDate    *string `json:"check_out_date,omitempty"`
	Status          *string `json:"status,omitempty"`
	ContactName     *string `json:"contact_name,omitempty"`
	ContactLastName *string `json:"contact_last_name,omitempty"`
	ContactPhone    *string `json:"contact_phone,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// TouchesAvailability reports whether the patch changes the room or the stay.
func (p ReservationPatch) TouchesAvailability() bool {
	return p.RoomNumber != nil || p.CheckInDate != nil || p.CheckOutDate != nil
}

// Apply returns a copy of r with the patch fields applied.
func (p ReservationPatch) Apply(r Reservation) Reservation {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.RoomNumber, p.RoomNumber)
	set(&r.CheckInDate, p.CheckInDate)
	set(&r.CheckOutDate, p.CheckOutDate)
	set(&r.Status, p.Status)
	set(&r.ContactName, p.ContactName)
	set(&r.ContactLastName, p.ContactLastName)
	set(&r.ContactPhone, p.ContactPhone)
	set(&r.Notes, p.Notes)
	return r
}

// Overlaps is the half-open interval test [checkIn, checkOut) used for
// conflict detection. Touching at a boundary is not an overlap.
func (r Reservation) Overlaps(checkIn, checkOut string) bool {
	return r.CheckInDate < checkOut && r.CheckOutDate > checkIn
}

// ParseDate parses a YYYY-MM-DD stay date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Nights lists every night of the stay [checkIn, checkOut) as YYYY-MM-DD.
func Nights(checkIn, checkOut string) ([]string, error) {
	start, err := ParseDate(checkIn)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(checkOut)
	if err != nil {
		return nil, err
	}

	var nights []string
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d.Format(DateLayout))
	}
	return nights, nil
}

// FormatTimestamp renders an audit timestamp in storage format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts the storage format and RFC3339 variants.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
