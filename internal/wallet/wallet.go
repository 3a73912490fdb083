// Package wallet is the collaborator contract for passenger funds and
// driver earnings. The engine holds a passenger's amount when the driver
// accepts, captures it when the ride completes (the driver_earning
// credit), and releases it when the booking or the ride is cancelled.
// All calls happen after the core mutation commits; a wallet failure is
// logged and never rolls the mutation back.
package wallet

import (
	"context"

	"github.com/example/carpool/internal/models"
)

type Ledger interface {
	// Hold reserves the booking's amount against the passenger and
	// returns a hold id for later capture or release.
	Hold(ctx context.Context, b *models.Booking) (string, error)
	// Capture finalizes a held amount, crediting the driver.
	Capture(ctx context.Context, holdID string) error
	// Release frees a held amount without capture.
	Release(ctx context.Context, holdID string) error
}
