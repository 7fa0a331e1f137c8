package records

import (
	"strings"
	"time"

	"hotelbooking/internal/models"
	"hotelbooking/internal/store"
)

func CompanyToRecord(c models.Company) store.Record {
	pk, sk := CompanyKey(c.ID)
	return store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         sk,
		store.AttrEntityType: models.EntityCompany,
		AttrName:             c.Name,
		AttrGSI1PK:           CompanyPartition(c.ID),
		AttrGSI1SK:           pk,
	}
}

func CompanyFromRecord(r store.Record) models.Company {
	return models.Company{
		ID:   strings.TrimPrefix(r.PK(), PrefixCompany),
		Name: r.String(AttrName),
	}
}

func LocationToRecord(l models.Location) store.Record {
	pk, sk := LocationKey(l.ID)
	return store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         sk,
		store.AttrEntityType: models.EntityLocation,
		AttrName:             l.Name,
		AttrCompanyID:        l.CompanyID,
		AttrSortOrder:        l.SortOrder,
		AttrGSI1PK:           CompanyPartition(l.CompanyID),
		AttrGSI1SK:           pk,
	}
}

func LocationFromRecord(r store.Record) models.Location {
	return models.Location{
		ID:        strings.TrimPrefix(r.PK(), PrefixLocation),
		Name:      r.String(AttrName),
		CompanyID: r.String(AttrCompanyID),
		SortOrder: r.Int(AttrSortOrder),
	}
}

func RoomToRecord(room models.Room) store.Record {
	pk, sk := RoomKey(room.LocationID, room.Number)
	return store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         sk,
		store.AttrEntityType: models.EntityRoom,
		AttrNumber:           room.Number,
		AttrType:             room.Type,
		AttrNote:             room.Note,
		AttrLocationID:       room.LocationID,
		AttrIsActive:         room.IsActive,
		AttrGSI2PK:           LocationPartition(room.LocationID),
		AttrGSI2SK:           PrefixRoom + room.Number,
	}
}

func RoomFromRecord(r store.Record) models.Room {
	return models.Room{
		Number:     r.String(AttrNumber),
		Type:       r.String(AttrType),
		Note:       r.String(AttrNote),
		LocationID: r.String(AttrLocationID),
		IsActive:   r.Bool(AttrIsActive),
	}
}

// ReservationToRecord derives every index key of a reservation.
func ReservationToRecord(res models.Reservation) store.Record {
	pk, sk := ReservationKey(res.ID)
	rec := store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         sk,
		store.AttrEntityType: models.EntityReservation,
		AttrReservationID:    res.ID,
		AttrHotelID:          res.HotelID,
		AttrRoomID:           res.RoomNumber,
		AttrCheckInDate:      res.CheckInDate,
		AttrCheckOutDate:     res.CheckOutDate,
		AttrStatus:           res.Status,
		AttrContactName:      res.ContactName,
		AttrContactLastName:  res.ContactLastName,
		AttrContactPhone:     res.ContactPhone,
		AttrNotes:            res.Notes,
		AttrUserID:           res.UserID,
		AttrCreatedOn:        models.FormatTimestamp(res.CreatedOn),
		AttrModifiedOn:       models.FormatTimestamp(res.ModifiedOn),
		AttrModifiedBy:       res.ModifiedBy,
		AttrIsDeleted:        res.IsDeleted,
		AttrGuestCount:       int64(res.GuestCount),
		AttrGSI3PK:           UserPartition(res.ModifiedBy),
		AttrGSI3SK:           pk,
		AttrGSI4PK:           RoomPartition(res.RoomNumber),
		AttrGSI4SK:           pk,
		AttrGSI5PK:           DatePartition(res.CheckInDate),
		AttrGSI5SK:           pk,
	}
	if res.DeletedOn != nil {
		rec[AttrDeletedOn] = models.FormatTimestamp(*res.DeletedOn)
		rec[AttrDeletedBy] = res.DeletedBy
	}
	return rec
}

// ReservationFromRecord rebuilds a reservation without its guests.
func ReservationFromRecord(r store.Record) models.Reservation {
	id := r.String(AttrReservationID)
	if id == "" {
		id, _ = ReservationIDFromPK(r.PK())
	}
	res := models.Reservation{
		ID:              id,
		HotelID:         r.String(AttrHotelID),
		RoomNumber:      r.String(AttrRoomID),
		CheckInDate:     r.String(AttrCheckInDate),
		CheckOutDate:    r.String(AttrCheckOutDate),
		Status:          r.String(AttrStatus),
		ContactName:     r.String(AttrContactName),
		ContactLastName: r.String(AttrContactLastName),
		ContactPhone:    r.String(AttrContactPhone),
		Notes:           r.String(AttrNotes),
		UserID:          r.String(AttrUserID),
		ModifiedBy:      r.String(AttrModifiedBy),
		IsDeleted:       r.Bool(AttrIsDeleted),
		DeletedBy:       r.String(AttrDeletedBy),
		GuestCount:      int(r.Int(AttrGuestCount)),
		Guests:          []models.Guest{},
	}
	res.CreatedOn = parseTimestamp(r.String(AttrCreatedOn))
	res.ModifiedOn = parseTimestamp(r.String(AttrModifiedOn))
	if s := r.String(AttrDeletedOn); s != "" {
		deletedOn := parseTimestamp(s)
		res.DeletedOn = &deletedOn
	}
	return res
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// GuestToRecord stores a guest under its reservation's primary key.
func GuestToRecord(reservationID string, ordinal int, g models.Guest) store.Record {
	pk, _ := ReservationKey(reservationID)
	return store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         GuestSK(ordinal),
		store.AttrEntityType: models.EntityReservationPerson,
		AttrReservationID:    reservationID,
		AttrOrdinal:          int64(ordinal),
		AttrFirstName:        g.FirstName,
		AttrLastName:         g.LastName,
	}
}

func GuestFromRecord(r store.Record) models.Guest {
	return models.Guest{
		FirstName: r.String(AttrFirstName),
		LastName:  r.String(AttrLastName),
	}
}

// NightClaimRecord marks one night of a room as taken by a reservation.
func NightClaimRecord(hotelID, roomNumber, night, reservationID string, now time.Time) store.Record {
	pk, sk := NightClaimKey(hotelID, roomNumber, night)
	return store.Record{
		store.AttrPK:         pk,
		store.AttrSK:         sk,
		store.AttrEntityType: models.EntityNightClaim,
		AttrHotelID:          hotelID,
		AttrRoomID:           roomNumber,
		AttrNightDate:        night,
		AttrReservationID:    reservationID,
		AttrClaimedOn:        models.FormatTimestamp(now),
	}
}
