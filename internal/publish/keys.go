package publish

import (
	"errors"
	"fmt"

	"github.com/tinytelemetry/udp2redis/internal/model"
)

// KeyMode selects how destination keys are derived from an envelope.
type KeyMode string

const (
	// KeysPerKind routes inertial and ranging envelopes to separate keys.
	KeysPerKind KeyMode = "per-kind"
	// KeysShared routes every envelope to one key.
	KeysShared KeyMode = "shared"
)

const (
	DefaultSharedKey   = "MOTIONCAPTURE"
	DefaultInertialKey = "MOTIONCAPTURE-MPU6050"
	DefaultRangingKey  = "MOTIONCAPTURE-UWB"
)

var ErrInvalidKeyPolicy = errors.New("publish: invalid key policy")

// KeyPolicy maps an envelope kind to the Redis key used for both the SET and
// the PUBLISH channel.
type KeyPolicy struct {
	Mode     KeyMode `json:"mode" yaml:"mode"`
	Shared   string  `json:"shared_key" yaml:"shared-key"`
	Inertial string  `json:"inertial_key" yaml:"inertial-key"`
	Ranging  string  `json:"ranging_key" yaml:"ranging-key"`
}

// DefaultKeyPolicy returns per-kind routing with the default key names.
func DefaultKeyPolicy() KeyPolicy {
	return KeyPolicy{
		Mode:     KeysPerKind,
		Shared:   DefaultSharedKey,
		Inertial: DefaultInertialKey,
		Ranging:  DefaultRangingKey,
	}
}

// ParseKeyMode accepts "per-kind" or "shared".
func ParseKeyMode(s string) (KeyMode, error) {
	switch KeyMode(s) {
	case KeysPerKind, KeysShared:
		return KeyMode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q (want %q or %q)", ErrInvalidKeyPolicy, s, KeysPerKind, KeysShared)
}

// Validate checks that the keys used by the selected mode are set.
func (p KeyPolicy) Validate() error {
	switch p.Mode {
	case KeysShared:
		if p.Shared == "" {
			return fmt.Errorf("%w: shared key is empty", ErrInvalidKeyPolicy)
		}
	case KeysPerKind:
		if p.Inertial == "" || p.Ranging == "" {
			return fmt.Errorf("%w: inertial and ranging keys must both be set", ErrInvalidKeyPolicy)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidKeyPolicy, p.Mode)
	}
	return nil
}

// KeyFor returns the destination key for kind.
func (p KeyPolicy) KeyFor(kind model.Kind) (string, error) {
	if p.Mode == KeysShared {
		return p.Shared, nil
	}
	switch kind {
	case model.KindInertial:
		return p.Inertial, nil
	case model.KindRanging:
		return p.Ranging, nil
	}
	return "", fmt.Errorf("%w: no key for %s", ErrInvalidKeyPolicy, kind)
}
