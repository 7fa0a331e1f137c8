package models

// Reservation statuses used by the administration UI. The set is open:
// any non-empty status is accepted.
const (
	StatusConfirmed = "Confirmed"
	StatusPending   = "Pending"
	StatusCancelled = "Cancelled"
)

// Entity type tags stored in the EntityType attribute.
const (
	EntityCompany           = "Company"
	EntityLocation          = "Location"
	EntityRoom              = "Room"
	EntityReservation       = "Reservation"
	EntityReservationPerson = "ReservationPerson"
	EntityNightClaim        = "NightClaim"
)

const (
	// DateLayout is the wire and storage format of stay dates.
	DateLayout = "2006-01-02"

	// TimestampLayout is the storage format of audit timestamps (always UTC).
	// It sorts lexicographically in time order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"

	// DefaultSystemUser is the caller identity used when no authenticated
	// identity is available.
	DefaultSystemUser = "system"

	// DefaultPageSize is the number of records requested per store page.
	DefaultPageSize = 100

	// DefaultMaxStayNights bounds a stay when the night guard is on and no
	// limit is configured, since every night is one claim record.
	DefaultMaxStayNights = 365

	// MaxGuests is the largest guest list of one reservation. Guest sort keys
	// are padded to three digits.
	MaxGuests = 999

	// DefaultReferenceCacheTTL is the lifetime of cached reference listings in seconds.
	DefaultReferenceCacheTTL = 5 * 60
)
