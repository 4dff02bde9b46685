package payments

import (
	"errors"
	"fmt"
	"time"
)

// VisitorDetails is the contact and party information collected before payment
type VisitorDetails struct {
	Name        string `json:"name" validate:"required,visitorname"`
	PhoneNumber string `json:"phoneNumber" validate:"required,inmobile"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PartySize   int    `json:"partySize" validate:"min=1,max=10"`
}

// Quote is the price breakdown for a tier and party size
type Quote struct {
	Base       int `json:"base"`
	BookingFee int `json:"booking_fee"`
	ServiceTax int `json:"service_tax"`
	PerPerson  int `json:"per_person"`
	PartySize  int `json:"party_size"`
	Total      int `json:"total"`
}

// Receipt is returned for every successful payment attempt
type Receipt struct {
	PaymentID   string    `json:"payment_id"`
	Amount      int       `json:"amount"`
	Quote       Quote     `json:"quote"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ValidationError is a field-level input problem; no charge was attempted
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Error definitions
var (
	ErrPaymentDeclined = errors.New("payment declined")
)
