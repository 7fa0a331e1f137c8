package service

import (
	"fmt"
	"strings"

	"hotelbooking/internal/domain"
	"hotelbooking/internal/models"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(field, "is required")
	}
	return nil
}

// validateStay checks the date format and order of a stay.
func validateStay(checkIn, checkOut string, maxNights int) error {
	in, err := models.ParseDate(checkIn)
	if err != nil {
		return domain.NewValidationError("check_in_date", err.Error())
	}
	out, err := models.ParseDate(checkOut)
	if err != nil {
		return domain.NewValidationError("check_out_date", err.Error())
	}
	if !in.Before(out) {
		return domain.NewValidationError("check_out_date", "must be after check_in_date")
	}
	if maxNights > 0 {
		if nights := int(out.Sub(in).Hours() / 24); nights > maxNights {
			return domain.NewValidationError("check_out_date", fmt.Sprintf("stay of %d nights exceeds the limit of %d", nights, maxNights))
		}
	}
	return nil
}

func validateDraft(hotelID string, d models.ReservationDraft, maxNights int) error {
	checks := []error{
		required("hotel_id", hotelID),
		required("room_number", d.RoomNumber),
		required("check_in_date", d.CheckInDate),
		required("check_out_date", d.CheckOutDate),
		required("status", d.Status),
		required("contact_name", d.ContactName),
		required("contact_last_name", d.ContactLastName),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if strings.ContainsAny(d.ID, "#/") {
		return domain.NewValidationError("reservation_id", "must not contain '#' or '/'")
	}
	if strings.Contains(d.RoomNumber, "#") {
		return domain.NewValidationError("room_number", "must not contain '#'")
	}
	if len(d.Guests) > models.MaxGuests {
		return domain.NewValidationError("guests", fmt.Sprintf("at most %d guests per reservation", models.MaxGuests))
	}
	for i, g := range d.Guests {
		if strings.TrimSpace(g.FirstName) == "" && strings.TrimSpace(g.LastName) == "" {
			return domain.NewValidationError(fmt.Sprintf("guests[%d]", i), "needs a first or last name")
		}
	}
	return validateStay(d.CheckInDate, d.CheckOutDate, maxNights)
}

// validatePatch rejects patches that would blank a required field.
func validatePatch(p models.ReservationPatch) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"room_number", p.RoomNumber},
		{"check_in_date", p.CheckInDate},
		{"check_out_date", p.CheckOutDate},
		{"status", p.Status},
		{"contact_name", p.ContactName},
		{"contact_last_name", p.ContactLastName},
	}
	for _, f := range fields {
		if f.value != nil {
			if err := required(f.name, *f.value); err != nil {
				return err
			}
		}
	}
	if p.RoomNumber != nil && strings.Contains(*p.RoomNumber, "#") {
		return domain.NewValidationError("room_number", "must not contain '#'")
	}
	return nil
}
