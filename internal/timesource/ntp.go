// Package timesource keeps wall-clock time synced from an NTP server and
// provides the monotonic uptime tick used for interval timing.
package timesource

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

// QueryFunc returns the current UTC time according to server
type QueryFunc func(server string) (time.Time, error)

// NTPQuery asks server for the time using github.com/beevik/ntp
func NTPQuery(server string) (time.Time, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: 2 * time.Second})
	if err != nil {
		return time.Time{}, err
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, err
	}
	return time.Now().Add(resp.ClockOffset), nil
}

// Client tracks network time. Update must be called every cycle before the
// accessors are read; between queries the time advances with the local
// monotonic clock.
type Client struct {
	server   string
	offset   time.Duration
	interval time.Duration
	query    QueryFunc
	now      func() time.Time
	logger   *slog.Logger

	synced     bool
	syncedTime time.Time // network time at lastUpdate
	lastUpdate time.Time // local monotonic reading of the last sync
}

// NewClient creates a client for server that applies a fixed offset to UTC
// and re-queries every interval
func NewClient(server string, offset, interval time.Duration, query QueryFunc, logger *slog.Logger) *Client {
	return &Client{
		server:   server,
		offset:   offset,
		interval: interval,
		query:    query,
		now:      time.Now,
		logger:   logger,
	}
}

// Update queries the server if it has never answered or the update
// interval has elapsed. It reports whether a query succeeded.
func (c *Client) Update() (bool, error) {
	if c.synced && c.now().Sub(c.lastUpdate) < c.interval {
		return false, nil
	}
	return c.ForceUpdate()
}

// ForceUpdate queries the server regardless of the interval
func (c *Client) ForceUpdate() (bool, error) {
	t, err := c.query(c.server)
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", c.server, err)
	}

	c.syncedTime = t
	c.lastUpdate = c.now()
	if !c.synced {
		c.logger.Info("time synced", "server", c.server, "utc", t.UTC().Format(time.RFC3339))
	}
	c.synced = true
	return true, nil
}

// Synced reports whether the server has answered at least once
func (c *Client) Synced() bool {
	return c.synced
}

// EpochTime returns seconds since the epoch with the offset applied, or 0
// before the first sync
func (c *Client) EpochTime() int64 {
	if !c.synced {
		return 0
	}
	current := c.syncedTime.Add(c.now().Sub(c.lastUpdate))
	return current.Unix() + int64(c.offset/time.Second)
}

// FormattedTime returns HH:MM:SS, or "" before the first sync
func (c *Client) FormattedTime() string {
	if !c.synced {
		return ""
	}
	return civil(c.EpochTime()).Format("15:04:05")
}

// FormattedDate returns M/D/YYYY, or "" before the first sync
func (c *Client) FormattedDate() string {
	if !c.synced {
		return ""
	}
	return civil(c.EpochTime()).Format("1/2/2006")
}

// civil converts offset epoch seconds to calendar fields
func civil(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC()
}
