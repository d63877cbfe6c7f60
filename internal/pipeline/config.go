package pipeline

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/tinytelemetry/udp2redis/internal/model"
	"github.com/tinytelemetry/udp2redis/internal/publish"
	"github.com/tinytelemetry/udp2redis/internal/queue"
)

var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Config is the immutable input of one pipeline run. Control surfaces build
// a fresh value for every start; the pipeline never modifies it.
type Config struct {
	UDPHost       string
	UDPPort       int
	RedisURL      string
	AuthIdentity  string
	AuthSecret    string
	Keys          publish.KeyPolicy
	PersistLatest bool
	QueueSize     int

	// Verbose only affects logging setup in the entrypoint.
	Verbose bool
}

// DefaultConfig returns the defaults used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		UDPHost:       model.DefaultUDPHost,
		UDPPort:       model.DefaultUDPPort,
		RedisURL:      model.DefaultRedisURL,
		Keys:          publish.DefaultKeyPolicy(),
		PersistLatest: true,
		QueueSize:     queue.DefaultSize,
	}
}

// Validate checks the values a pipeline needs before touching the network.
func (c Config) Validate() error {
	if c.UDPPort < 0 || c.UDPPort > 65535 {
		return fmt.Errorf("%w: udp port %d out of range", ErrInvalidConfig, c.UDPPort)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("%w: redis url is empty", ErrInvalidConfig)
	}
	if err := c.Keys.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RedactedRedisURL returns the Redis URL with any password masked.
func (c Config) RedactedRedisURL() string {
	u, err := url.Parse(c.RedisURL)
	if err != nil {
		return "(unparseable)"
	}
	return u.Redacted()
}
