package records

import (
	"time"

	"hotelbooking/internal/models"
	"hotelbooking/internal/store"
)

// mutableAttrs are the reservation attributes an update may change directly.
var mutableAttrs = map[string]bool{
	AttrRoomID:          true,
	AttrCheckInDate:     true,
	AttrCheckOutDate:    true,
	AttrStatus:          true,
	AttrContactName:     true,
	AttrContactLastName: true,
	AttrContactPhone:    true,
	AttrNotes:           true,
}

// IsMutable reports whether attr may be set by a reservation update.
func IsMutable(attr string) bool {
	return mutableAttrs[attr]
}

// MutableOnly drops every attribute that is not updatable, including
// identity and index key attributes.
func MutableOnly(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if mutableAttrs[k] {
			out[k] = v
		}
	}
	return out
}

// ReservationPatchAttributes converts a patch into store attributes. The
// modification stamp is always set and every index key mirroring a changed
// attribute is recomputed.
func ReservationPatchAttributes(p models.ReservationPatch, modifiedBy string, now time.Time) map[string]any {
	attrs := map[string]any{}
	set := func(attr string, v *string) {
		if v != nil {
			attrs[attr] = *v
		}
	}
	set(AttrRoomID, p.RoomNumber)
	set(AttrCheckInDate, p.CheckInDate)
	set(AttrCheckOutDate, p.CheckOutDate)
	set(AttrStatus, p.Status)
	set(AttrContactName, p.ContactName)
	set(AttrContactLastName, p.ContactLastName)
	set(AttrContactPhone, p.ContactPhone)
	set(AttrNotes, p.Notes)

	attrs = MutableOnly(attrs)
	attrs[AttrModifiedOn] = models.FormatTimestamp(now)
	attrs[AttrModifiedBy] = modifiedBy
	return withShadowKeys(attrs)
}

// SoftDeleteAttributes marks a reservation deleted. The record stays in place.
func SoftDeleteAttributes(deletedBy string, now time.Time) map[string]any {
	stamp := models.FormatTimestamp(now)
	return withShadowKeys(map[string]any{
		AttrIsDeleted:  true,
		AttrDeletedOn:  stamp,
		AttrDeletedBy:  deletedBy,
		AttrModifiedOn: stamp,
		AttrModifiedBy: deletedBy,
	})
}

// withShadowKeys adds the index keys derived from attributes present in attrs.
func withShadowKeys(attrs map[string]any) map[string]any {
	if v, ok := attrs[AttrRoomID].(string); ok {
		attrs[AttrGSI4PK] = RoomPartition(v)
	}
	if v, ok := attrs[AttrCheckInDate].(string); ok {
		attrs[AttrGSI5PK] = DatePartition(v)
	}
	if v, ok := attrs[AttrModifiedBy].(string); ok {
		attrs[AttrGSI3PK] = UserPartition(v)
	}
	return attrs
}

// ShadowKeysConsistent reports whether a reservation record's index keys
// mirror its attributes.
func ShadowKeysConsistent(r store.Record) bool {
	return r.String(AttrGSI4PK) == RoomPartition(r.String(AttrRoomID)) &&
		r.String(AttrGSI5PK) == DatePartition(r.String(AttrCheckInDate)) &&
		r.String(AttrGSI3PK) == UserPartition(r.String(AttrModifiedBy)) &&
		r.String(AttrGSI4SK) == r.PK() &&
		r.String(AttrGSI5SK) == r.PK() &&
		r.String(AttrGSI3SK) == r.PK()
}
