package domain

type Booking struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// DateSlot is one reserved calendar day. Date is the storage uniqueness key.
type DateSlot struct {
	Date      Date
	BookingID string
}
