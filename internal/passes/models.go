package passes

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PassPayload is the flat document encoded into the pass QR code
type PassPayload struct {
	BookingID       string `json:"bookingId"`
	TempleID        string `json:"templeId"`
	TempleName      string `json:"templeName"`
	TempleLocation  string `json:"templeLocation"`
	VisitorName     string `json:"visitorName"`
	PhoneNumber     string `json:"phoneNumber"`
	Email           string `json:"email,omitempty"`
	SlotTime        string `json:"slotTime"`
	Tier            string `json:"tier"`
	TierPrice       int    `json:"tierPrice"`
	NumberOfPeople  int    `json:"numberOfPeople"`
	Amount          int    `json:"amount"`
	PaymentID       string `json:"paymentId"`
	BookingDate     string `json:"bookingDate"`
	BookingTime     string `json:"bookingTime"`
	ValidUntil      string `json:"validUntil"`
	QueuePosition   int    `json:"queuePosition"`
	EstimatedTime   int    `json:"estimatedTime"`
	VerificationURL string `json:"verificationUrl"`
	Checksum        string `json:"checksum"`
	Token           string `json:"token"`
}

// Encode returns the QR text for the payload
func (p *PassPayload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pass payload: %w", err)
	}
	return string(data), nil
}

// Pass is a payload plus whether it has been consumed
type Pass struct {
	Payload *PassPayload `json:"payload"`
	QRData  string       `json:"qrData"`
	Used    bool         `json:"used"`
}

// ScanResult is returned by a successful scan
type ScanResult struct {
	BookingID string `json:"bookingId"`
	TempleID  string `json:"templeId"`
	Status    string `json:"status"`
}

const (
	ScanStatusAdmitted    = "admitted"
	ScanStatusAlreadyUsed = "already_used"
)

// Error definitions
var (
	ErrUsedPass     = errors.New("pass has already been used")
	ErrInvalidToken = errors.New("pass token is invalid")
	ErrExpiredToken = errors.New("pass token has expired")
)
