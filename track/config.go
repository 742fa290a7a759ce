// track/config.go
package track

import "time"

// Config controls the embeddable telemetry agent. Zero values fall back to
// the defaults below.
type Config struct {
	// Endpoint is the ingestion URL (POST /api/track).
	Endpoint string

	// BatchSize triggers an immediate flush when the queue reaches it.
	BatchSize int

	// FlushInterval bounds how long captured events wait before a timed
	// flush; only one timer is ever pending.
	FlushInterval time.Duration

	// SessionTimeout rotates the session id when the stored session has
	// been idle longer than this.
	SessionTimeout time.Duration

	// MaxQueue bounds local buffering; overflow evicts oldest-first.
	MaxQueue int

	// SendTimeout bounds each transmission attempt so a final flush on
	// shutdown cannot stall the host.
	SendTimeout time.Duration

	// RetryBackoff is the initial delay before a failed batch becomes
	// eligible for retransmission; it doubles per consecutive failure up
	// to RetryBackoffMax.
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	// StateDir holds the persistent identity scope (survives restarts).
	// SessionDir holds the per-visit scope. Empty values or unusable
	// directories degrade silently to in-memory identity.
	StateDir   string
	SessionDir string
}

const (
	defaultBatchSize       = 10
	defaultFlushInterval   = 30 * time.Second
	defaultSessionTimeout  = 30 * time.Minute
	defaultMaxQueue        = 1000
	defaultSendTimeout     = 5 * time.Second
	defaultRetryBackoff    = time.Second
	defaultRetryBackoffMax = time.Minute
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = defaultMaxQueue
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = defaultRetryBackoffMax
	}
	return c
}

// DeviceClass buckets a viewport width the way the dashboard expects.
func DeviceClass(viewportWidth int) string {
	switch {
	case viewportWidth <= 0:
		return ""
	case viewportWidth < 768:
		return "mobile"
	case viewportWidth < 1024:
		return "tablet"
	default:
		return "desktop"
	}
}
