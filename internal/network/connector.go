// Package network joins the WiFi network with stored credentials.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jgoulah/thermonode/internal/retry"
	"github.com/jgoulah/thermonode/pkg/models"
)

var (
	// ErrAssociationExhausted is returned when the station never reports a
	// connection within the retry policy
	ErrAssociationExhausted = errors.New("wifi association attempts exhausted")

	errNotAssociated = errors.New("not associated")
)

// Station is the WiFi client interface of the device
type Station interface {
	// Join starts associating with a network; it does not wait for the link
	Join(ctx context.Context, ssid, password string) error
	Connected(ctx context.Context) bool
	Address(ctx context.Context) (string, error)
}

// Connector associates the station under a bounded retry policy
type Connector struct {
	station Station
	policy  retry.Policy
	logger  *slog.Logger
}

// NewConnector creates a connector. policy must be bounded.
func NewConnector(station Station, policy retry.Policy, logger *slog.Logger) *Connector {
	return &Connector{station: station, policy: policy, logger: logger}
}

// Connect joins the network in creds and waits for the link, returning the
// assigned address. It fails with ErrAssociationExhausted when every
// status check of the policy reported no link.
func (c *Connector) Connect(ctx context.Context, creds models.Credentials) (string, error) {
	if !creds.Valid() {
		return "", errors.New("connecting: incomplete credentials")
	}

	c.logger.Info("connecting to wifi", "ssid", creds.SSID)
	if err := c.station.Join(ctx, creds.SSID, creds.Password); err != nil {
		// The status checks below decide the outcome.
		c.logger.Warn("wifi join request failed", "ssid", creds.SSID, "error", err)
	}

	err := c.policy.Do(ctx, func() error {
		if c.station.Connected(ctx) {
			return nil
		}
		return errNotAssociated
	}, func(attempt uint, err error) {
		c.logger.Debug("waiting for wifi", "attempt", attempt+1)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %d attempts for %s", ErrAssociationExhausted, c.policy.MaxAttempts, creds.SSID)
	}

	addr, err := c.station.Address(ctx)
	if err != nil {
		return "", fmt.Errorf("reading local address: %w", err)
	}

	c.logger.Info("wifi connected", "ssid", creds.SSID, "address", addr)
	return addr, nil
}

// Status reports the current WiFi link state
func (c *Connector) Status(ctx context.Context) models.LinkState {
	if c.station.Connected(ctx) {
		return models.Connected
	}
	return models.Disconnected
}
