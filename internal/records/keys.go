// Package records maps domain entities to flat store records. It is the only
// place that knows how primary and secondary index keys are derived.
package records

import (
	"fmt"
	"strings"
)

const (
	SKMetadata = "METADATA"
	SKClaim    = "CLAIM"

	PrefixCompany     = "COMPANY#"
	PrefixLocation    = "LOCATION#"
	PrefixRoom        = "ROOM#"
	PrefixReservation = "RESERVATION#"
	PrefixPerson      = "PERSON#"
	PrefixUser        = "USER#"
	PrefixDate        = "DATE#"
	PrefixNight       = "NIGHT#"
)

// Attribute names.
const (
	AttrName            = "Name"
	AttrCompanyID       = "CompanyId"
	AttrSortOrder       = "SortOrder"
	AttrNumber          = "Number"
	AttrType            = "Type"
	AttrNote            = "Note"
	AttrLocationID      = "LocationId"
	AttrIsActive        = "IsActive"
	AttrReservationID   = "ReservationId"
	AttrHotelID         = "HotelId"
	AttrRoomID          = "RoomId"
	AttrCheckInDate     = "CheckInDate"
	AttrCheckOutDate    = "CheckOutDate"
	AttrStatus          = "Status"
	AttrContactName     = "ContactName"
	AttrContactLastName = "ContactLastName"
	AttrContactPhone    = "ContactPhone"
	AttrNotes           = "Notes"
	AttrUserID          = "UserId"
	AttrCreatedOn       = "CreatedOn"
	AttrModifiedOn      = "ModifiedOn"
	AttrModifiedBy      = "ModifiedBy"
	AttrIsDeleted       = "IsDeleted"
	AttrDeletedOn       = "DeletedOn"
	AttrDeletedBy       = "DeletedBy"
	AttrGuestCount      = "GuestCount"
	AttrFirstName       = "FirstName"
	AttrLastName        = "LastName"
	AttrOrdinal         = "Ordinal"
	AttrNightDate       = "NightDate"
	AttrClaimedOn       = "ClaimedOn"
)

// Index key attributes.
const (
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
	AttrGSI2PK = "GSI2PK"
	AttrGSI2SK = "GSI2SK"
	AttrGSI3PK = "GSI3PK"
	AttrGSI3SK = "GSI3SK"
	AttrGSI4PK = "GSI4PK"
	AttrGSI4SK = "GSI4SK"
	AttrGSI5PK = "GSI5PK"
	AttrGSI5SK = "GSI5SK"
)

func CompanyKey(id string) (pk, sk string) {
	return PrefixCompany + id, SKMetadata
}

func LocationKey(id string) (pk, sk string) {
	return PrefixLocation + id, SKMetadata
}

// RoomKey keys a room by its location and number, so equal numbers in
// different hotels never collide.
func RoomKey(locationID, number string) (pk, sk string) {
	return PrefixRoom + locationID + "#" + number, SKMetadata
}

func ReservationKey(id string) (pk, sk string) {
	return PrefixReservation + id, SKMetadata
}

// GuestSK is the sort key of the guest at a 1-based ordinal.
func GuestSK(ordinal int) string {
	return fmt.Sprintf("%s%03d", PrefixPerson, ordinal)
}

// NightClaimKey keys the claim on one night of one room in one hotel.
func NightClaimKey(hotelID, roomNumber, night string) (pk, sk string) {
	return PrefixNight + hotelID + "#" + roomNumber + "#" + night, SKClaim
}

// RoomPartition is the reservation-by-room index partition.
func RoomPartition(roomNumber string) string {
	return PrefixRoom + roomNumber
}

// LocationPartition is the room-by-location index partition.
func LocationPartition(locationID string) string {
	return PrefixLocation + locationID
}

func CompanyPartition(companyID string) string {
	return PrefixCompany + companyID
}

func UserPartition(user string) string {
	return PrefixUser + user
}

func DatePartition(date string) string {
	return PrefixDate + date
}

// ReservationIDFromPK strips the reservation prefix from a primary key.
func ReservationIDFromPK(pk string) (string, bool) {
	return strings.CutPrefix(pk, PrefixReservation)
}
