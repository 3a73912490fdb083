package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/carpool/internal/models"
)

// StripeLedger implements Ledger on stripe PaymentIntents with
// capture_method=manual: Hold creates the intent, Capture finalizes it,
// Release cancels it.
type StripeLedger struct {
	Currency string
}

// NewStripeLedger configures the stripe client from the given API key
// and sets the settlement currency for holds.
func NewStripeLedger(apiKey, currency string) *StripeLedger {
	stripe.Key = apiKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeLedger{Currency: currency}
}

func (s *StripeLedger) Hold(ctx context.Context, b *models.Booking) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(b.Amount)),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("booking_id", b.ID)
	params.AddMetadata("ride_id", b.RideID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeLedger) Capture(ctx context.Context, holdID string) error {
	_, err := paymentintent.Capture(holdID, nil)
	return err
}

func (s *StripeLedger) Release(ctx context.Context, holdID string) error {
	_, err := paymentintent.Cancel(holdID, nil)
	return err
}

// minorUnits converts a decimal amount to the smallest currency unit.
func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
