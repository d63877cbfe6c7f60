// Package redisbackend opens the publishing worker's dedicated Redis
// connection and exposes the two commands the relay issues on it.
package redisbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrConnect is returned when the backend cannot be reached or the URL is invalid.
	ErrConnect = errors.New("redisbackend: connect failed")

	// ErrAuth is returned when the backend rejects the AUTH handshake.
	ErrAuth = errors.New("redisbackend: auth failed")
)

// Options selects the backend and the optional AUTH credentials.
//
// With only Identity set the handshake is the legacy single-argument
// AUTH <identity>. With both set it is AUTH <identity> <secret>.
type Options struct {
	URL      string
	Identity string
	Secret   string
	Logger   *slog.Logger
}

// Conn is a single Redis connection owned by one publishing worker.
type Conn struct {
	client *redis.Client
	conn   *redis.Conn
}

// Dial opens the connection and performs the AUTH handshake before any
// traffic. Retries are disabled so a failed command is never replayed.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ro, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse url: %v", ErrConnect, err)
	}
	applyAuth(ro, opts.Identity, opts.Secret, logger)
	ro.PoolSize = 1
	ro.MaxRetries = -1
	ro.ReadTimeout = -1
	ro.WriteTimeout = -1

	client := redis.NewClient(ro)
	conn := client.Conn()
	if err := conn.Ping(ctx).Err(); err != nil {
		_ = conn.Close()
		_ = client.Close()
		if isAuthError(err) {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, ro.Addr, err)
	}
	logger.Info("connected to redis", "component", "redis", "addr", ro.Addr, "auth", ro.Password != "")
	return &Conn{client: client, conn: conn}, nil
}

func applyAuth(ro *redis.Options, identity, secret string, logger *slog.Logger) {
	switch {
	case identity != "" && secret != "":
		ro.Username = identity
		ro.Password = secret
	case identity != "":
		ro.Username = ""
		ro.Password = identity
	case secret != "":
		logger.Warn("auth secret given without identity, ignoring it", "component", "redis")
	}
}

// authReplies are the reply prefixes a server uses to refuse credentials.
// Other replies during the handshake (an out of range SELECT, protected
// mode DENIED) are connect failures.
var authReplies = []string{
	"WRONGPASS",
	"NOAUTH",
	"ERR invalid password",
	"ERR invalid username-password pair",
	"ERR AUTH",
	"ERR Client sent AUTH",
}

func isAuthError(err error) bool {
	var rerr redis.Error
	if !errors.As(err, &rerr) {
		return false
	}
	msg := rerr.Error()
	for _, prefix := range authReplies {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// Set stores payload under key.
func (c *Conn) Set(ctx context.Context, key string, payload []byte) error {
	return c.conn.Set(ctx, key, payload, 0).Err()
}

// Publish broadcasts payload on channel.
func (c *Conn) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.conn.Publish(ctx, channel, payload).Err()
}

// Close releases the connection.
func (c *Conn) Close() error {
	return errors.Join(c.conn.Close(), c.client.Close())
}
