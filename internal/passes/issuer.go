package passes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"templeq/internal/bookings"
	"templeq/internal/temples"
	"templeq/pkg/clock"
	"templeq/pkg/logger"

	"github.com/golang-jwt/jwt/v4"
)

const (
	dateLayout = "2/1/2006"
	timeLayout = "3:04:05 pm"
)

// IssuerConfig holds signing and retention settings for passes
type IssuerConfig struct {
	SigningSecret string
	VerifyBaseURL string
	ValidFor      time.Duration
	UsedRetention time.Duration
}

// passClaims is the signed part of a pass
type passClaims struct {
	BookingID string `json:"bid"`
	TempleID  string `json:"tid"`
	// BookingExpiry is the unix time the booking itself lapses
	BookingExpiry int64 `json:"bex,omitempty"`
	jwt.RegisteredClaims
}

// Issuer builds pass payloads and tracks single use
type Issuer struct {
	store  UsedStore
	clock  clock.Clock
	loc    *time.Location
	config IssuerConfig
	logger *logger.Logger
}

// NewIssuer creates a pass issuer; loc is the zone booking dates are shown in
func NewIssuer(store UsedStore, clk clock.Clock, loc *time.Location, config IssuerConfig) *Issuer {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Issuer{
		store:  store,
		clock:  clk,
		loc:    loc,
		config: config,
		logger: logger.GetDefault(),
	}
}

// BuildPassPayload projects a booking into its pass payload. The checksum
// is a display value; the token carries the signature. A pass never
// outlives its booking.
func (i *Issuer) BuildPassPayload(b *bookings.Booking, t *temples.Temple) (*PassPayload, error) {
	if b == nil || t == nil {
		return nil, fmt.Errorf("build pass: booking and temple are required")
	}

	now := i.clock.Now()
	validUntil := now.Add(i.config.ValidFor)
	if !b.ExpiresAt.IsZero() && b.ExpiresAt.Before(validUntil) {
		validUntil = b.ExpiresAt
	}

	token, err := i.sign(b, now, validUntil)
	if err != nil {
		return nil, err
	}

	created := b.CreatedAt.In(i.loc)
	return &PassPayload{
		BookingID:       b.BookingID,
		TempleID:        t.ID,
		TempleName:      t.Name,
		TempleLocation:  t.Location,
		VisitorName:     b.Visitor.Name,
		PhoneNumber:     b.Visitor.PhoneNumber,
		Email:           b.Visitor.Email,
		SlotTime:        b.SlotTime,
		Tier:            b.Tier.DisplayName,
		TierPrice:       b.Tier.Price,
		NumberOfPeople:  b.PartySize,
		Amount:          b.AmountCharged,
		PaymentID:       b.PaymentID,
		BookingDate:     created.Format(dateLayout),
		BookingTime:     created.Format(timeLayout),
		ValidUntil:      validUntil.UTC().Format(time.RFC3339Nano),
		QueuePosition:   b.QueuePosition,
		EstimatedTime:   b.EstimatedWaitMinutes,
		VerificationURL: i.config.VerifyBaseURL + b.BookingID,
		Checksum:        checksum(b.BookingID, t.ID, now),
		Token:           token,
	}, nil
}

// Pass returns the payload together with its used flag
func (i *Issuer) Pass(ctx context.Context, b *bookings.Booking, t *temples.Temple) (*Pass, error) {
	payload, err := i.BuildPassPayload(b, t)
	if err != nil {
		return nil, err
	}
	qr, err := payload.Encode()
	if err != nil {
		return nil, err
	}
	used, err := i.IsUsed(ctx, b.BookingID)
	if err != nil {
		return nil, err
	}
	return &Pass{Payload: payload, QRData: qr, Used: used}, nil
}

func (i *Issuer) IsUsed(ctx context.Context, bookingID string) (bool, error) {
	used, err := i.store.IsUsed(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("check pass %s: %w", bookingID, err)
	}
	return used, nil
}

// MarkUsed consumes a pass. Marking an already used pass is a no-op.
func (i *Issuer) MarkUsed(ctx context.Context, bookingID string) error {
	_, err := i.markUsed(ctx, bookingID, time.Time{})
	return err
}

// Scan simulates the gate: it verifies the token and consumes the pass.
// A pass that was already consumed yields ErrUsedPass with the result.
func (i *Issuer) Scan(ctx context.Context, token string) (*ScanResult, error) {
	claims, err := i.verify(token)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{BookingID: claims.BookingID, TempleID: claims.TempleID}
	var bookingExpiry time.Time
	if claims.BookingExpiry > 0 {
		bookingExpiry = time.Unix(claims.BookingExpiry, 0)
	}
	marked, err := i.markUsed(ctx, claims.BookingID, bookingExpiry)
	if err != nil {
		return nil, err
	}
	if !marked {
		result.Status = ScanStatusAlreadyUsed
		return result, ErrUsedPass
	}

	result.Status = ScanStatusAdmitted
	i.logger.LogPassUsed(ctx, claims.BookingID, "scan")
	return result, nil
}

// Compact drops used entries past their retention
func (i *Issuer) Compact(ctx context.Context) (int, error) {
	return i.store.Compact(ctx, i.clock.Now())
}

// markUsed keeps the used entry for the retention period, and at least
// until bookingExpiry so no fresh pass for the booking can be admitted
func (i *Issuer) markUsed(ctx context.Context, bookingID string, bookingExpiry time.Time) (bool, error) {
	keepUntil := i.clock.Now().Add(i.config.UsedRetention)
	if bookingExpiry.After(keepUntil) {
		keepUntil = bookingExpiry
	}
	marked, err := i.store.MarkUsed(ctx, bookingID, keepUntil)
	if err != nil {
		return false, fmt.Errorf("mark pass %s used: %w", bookingID, err)
	}
	return marked, nil
}

func (i *Issuer) sign(b *bookings.Booking, issuedAt, expiresAt time.Time) (string, error) {
	claims := passClaims{
		BookingID: b.BookingID,
		TempleID:  b.TempleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        b.BookingID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if !b.ExpiresAt.IsZero() {
		claims.BookingExpiry = b.ExpiresAt.Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.config.SigningSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign pass token: %w", err)
	}
	return signed, nil
}

// verify checks the signature with the library and expiry against the
// issuer clock
func (i *Issuer) verify(tokenString string) (*passClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &passClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(i.config.SigningSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*passClaims)
	if !ok || !token.Valid || claims.BookingID == "" {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyExpiresAt(i.clock.Now(), true) {
		return nil, ErrExpiredToken
	}
	return claims, nil
}

func checksum(bookingID, templeID string, at time.Time) string {
	raw := fmt.Sprintf("%s-%s-%d", bookingID, templeID, at.UnixMilli())
	if len(raw) <= 8 {
		return raw
	}
	return raw[len(raw)-8:]
}

// IsPassError reports whether err came from pass verification
func IsPassError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrExpiredToken) || errors.Is(err, ErrUsedPass)
}
