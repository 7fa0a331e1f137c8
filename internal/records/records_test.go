package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelbooking/internal/models"
	"hotelbooking/internal/store"
)

func testReservation() models.Reservation {
	created := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	return models.Reservation{
		ID:              "res1",
		HotelID:         "loc1",
		RoomNumber:      "101",
		CheckInDate:     "2024-01-15",
		CheckOutDate:    "2024-01-18",
		Status:          models.StatusConfirmed,
		ContactName:     "Ann",
		ContactLastName: "Lee",
		ContactPhone:    "+1 555 0100",
		UserID:          "alice",
		CreatedOn:       created,
		ModifiedOn:      created,
		ModifiedBy:      "alice",
		GuestCount:      2,
	}
}

func TestReservationRecord(t *testing.T) {
	res := testReservation()
	rec := ReservationToRecord(res)

	assert.Equal(t, "RESERVATION#res1", rec.PK())
	assert.Equal(t, SKMetadata, rec.SK())
	assert.Equal(t, models.EntityReservation, rec.EntityType())
	assert.Equal(t, "ROOM#101", rec[AttrGSI4PK])
	assert.Equal(t, "DATE#2024-01-15", rec[AttrGSI5PK])
	assert.Equal(t, "USER#alice", rec[AttrGSI3PK])
	assert.Equal(t, false, rec[AttrIsDeleted])
	assert.False(t, rec.Has(AttrDeletedOn))
	assert.True(t, ShadowKeysConsistent(rec))

	back := ReservationFromRecord(rec)
	assert.Equal(t, res.ID, back.ID)
	assert.Equal(t, res.RoomNumber, back.RoomNumber)
	assert.True(t, res.CreatedOn.Equal(back.CreatedOn))
	assert.Equal(t, 2, back.GuestCount)
	assert.NotNil(t, back.Guests)
	assert.Nil(t, back.DeletedOn)
}

func TestReservationFromRecord_LegacyShape(t *testing.T) {
	rec := store.Record{
		"PK":           "RESERVATION#old",
		"SK":           "METADATA",
		"RoomId":       "7",
		"CheckInDate":  "2023-05-01",
		"CheckOutDate": "2023-05-02",
		"CreatedOn":    "2023-04-01T12:00:00.123456",
		"ModifiedOn":   "garbage",
	}
	res := ReservationFromRecord(rec)
	assert.Equal(t, "old", res.ID)
	assert.Equal(t, "7", res.RoomNumber)
	assert.Equal(t, 2023, res.CreatedOn.Year())
	assert.True(t, res.ModifiedOn.IsZero())
	assert.False(t, res.IsDeleted)
}

func TestReferenceRecords(t *testing.T) {
	loc := models.Location{ID: "loc1", Name: "Seaside", CompanyID: "c1", SortOrder: 2}
	rec := LocationToRecord(loc)
	assert.Equal(t, "COMPANY#c1", rec[AttrGSI1PK])
	assert.Equal(t, loc, LocationFromRecord(rec))

	company := models.Company{ID: "c1", Name: "Acme"}
	assert.Equal(t, company, CompanyFromRecord(CompanyToRecord(company)))

	room := models.Room{Number: "101", Type: "Double", LocationID: "loc1", IsActive: true}
	rrec := RoomToRecord(room)
	assert.Equal(t, "ROOM#loc1#101", rrec.PK())
	assert.Equal(t, "LOCATION#loc1", rrec[AttrGSI2PK])
	assert.Equal(t, room, RoomFromRecord(rrec))

	other := RoomToRecord(models.Room{Number: "101", LocationID: "loc2"})
	assert.NotEqual(t, rrec.PK(), other.PK(), "same number in another hotel is a distinct room")
}

func TestGuestAndClaimRecords(t *testing.T) {
	g := GuestToRecord("res1", 2, models.Guest{FirstName: "Bo", LastName: "Kim"})
	assert.Equal(t, "RESERVATION#res1", g.PK())
	assert.Equal(t, "PERSON#002", g.SK())
	assert.Equal(t, models.Guest{FirstName: "Bo", LastName: "Kim"}, GuestFromRecord(g))
	assert.Less(t, GuestSK(9), GuestSK(10))

	c := NightClaimRecord("loc1", "101", "2024-01-15", "res1", time.Now())
	assert.Equal(t, "NIGHT#loc1#101#2024-01-15", c.PK())
	assert.Equal(t, SKClaim, c.SK())
	assert.Equal(t, "res1", c.String(AttrReservationID))
}

func TestReservationPatchAttributes(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	t.Run("NotesOnly", func(t *testing.T) {
		notes := "x"
		attrs := ReservationPatchAttributes(models.ReservationPatch{Notes: &notes}, "bob", now)
		assert.Equal(t, "x", attrs[AttrNotes])
		assert.Equal(t, "bob", attrs[AttrModifiedBy])
		assert.Equal(t, "2024-02-01T08:00:00.000000Z", attrs[AttrModifiedOn])
		assert.Equal(t, "USER#bob", attrs[AttrGSI3PK])
		assert.NotContains(t, attrs, AttrRoomID)
		assert.NotContains(t, attrs, AttrGSI4PK)
		assert.NotContains(t, attrs, AttrGSI5PK)
	})

	t.Run("RoomAndCheckIn", func(t *testing.T) {
		room, checkIn := "202", "2024-03-01"
		attrs := ReservationPatchAttributes(models.ReservationPatch{RoomNumber: &room, CheckInDate: &checkIn}, "bob", now)
		assert.Equal(t, "ROOM#202", attrs[AttrGSI4PK])
		assert.Equal(t, "DATE#2024-03-01", attrs[AttrGSI5PK])
	})

	t.Run("EmptyPatchStillTouches", func(t *testing.T) {
		attrs := ReservationPatchAttributes(models.ReservationPatch{}, "bob", now)
		assert.Len(t, attrs, 3)
	})

	t.Run("AppliedRecordStaysConsistent", func(t *testing.T) {
		rec := ReservationToRecord(testReservation())
		room := "303"
		for k, v := range ReservationPatchAttributes(models.ReservationPatch{RoomNumber: &room}, "carol", now) {
			rec[k] = v
		}
		assert.True(t, ShadowKeysConsistent(rec))
	})
}

func TestMutableOnly(t *testing.T) {
	attrs := MutableOnly(map[string]any{
		"PK":            "x",
		"EntityType":    "Other",
		AttrHotelID:     "loc9",
		AttrCreatedOn:   "now",
		AttrGSI4PK:      "ROOM#9",
		AttrNotes:       "kept",
		AttrCheckInDate: "2024-01-01",
	})
	require.Len(t, attrs, 2)
	assert.Equal(t, "kept", attrs[AttrNotes])
	assert.True(t, IsMutable(AttrStatus))
	assert.False(t, IsMutable(AttrReservationID))
}

func TestSoftDeleteAttributes(t *testing.T) {
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	attrs := SoftDeleteAttributes("dave", now)
	assert.Equal(t, true, attrs[AttrIsDeleted])
	assert.Equal(t, "dave", attrs[AttrDeletedBy])
	assert.Equal(t, attrs[AttrModifiedOn], attrs[AttrDeletedOn])
	assert.Equal(t, "USER#dave", attrs[AttrGSI3PK])
}
