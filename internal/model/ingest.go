package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownKind is returned when encoding an Envelope with no variant set.
	ErrUnknownKind = errors.New("model: envelope has no variant")

	// ErrClockBeforeEpoch is returned by Stamp when the clock reads before 1970.
	ErrClockBeforeEpoch = errors.New("model: clock reads before unix epoch")
)

// Envelope carries one decoded sensor record between the ingestion and
// publishing workers. Exactly one of Inertial or Ranging is set, matching Kind.
type Envelope struct {
	Kind     Kind
	Inertial *InertialReading
	Ranging  *RangingReading
}

// NewInertial wraps an inertial reading.
func NewInertial(r InertialReading) Envelope {
	return Envelope{Kind: KindInertial, Inertial: &r}
}

// NewRanging wraps a ranging reading.
func NewRanging(r RangingReading) Envelope {
	return Envelope{Kind: KindRanging, Ranging: &r}
}

// Source returns the sensor id of the carried record.
func (e Envelope) Source() string {
	switch {
	case e.Kind == KindInertial && e.Inertial != nil:
		return e.Inertial.Source
	case e.Kind == KindRanging && e.Ranging != nil:
		return e.Ranging.Source
	}
	return ""
}

// Timestamp returns the record timestamp, if one is set.
func (e Envelope) Timestamp() (uint64, bool) {
	var ts *uint64
	switch {
	case e.Kind == KindInertial && e.Inertial != nil:
		ts = e.Inertial.Timestamp
	case e.Kind == KindRanging && e.Ranging != nil:
		ts = e.Ranging.Timestamp
	}
	if ts == nil {
		return 0, false
	}
	return *ts, true
}

// Stamp overwrites the record timestamp with now in whole seconds since the
// epoch. Any parsed timestamp is discarded. When now is before the epoch the
// record is left untouched and ErrClockBeforeEpoch is returned.
func (e Envelope) Stamp(now time.Time) error {
	if now.Before(time.Unix(0, 0)) {
		return fmt.Errorf("%w: %s", ErrClockBeforeEpoch, now.Format(time.RFC3339))
	}
	ts := uint64(now.Unix())
	switch {
	case e.Kind == KindInertial && e.Inertial != nil:
		e.Inertial.Timestamp = &ts
	case e.Kind == KindRanging && e.Ranging != nil:
		e.Ranging.Timestamp = &ts
	default:
		return ErrUnknownKind
	}
	return nil
}

// MarshalJSON encodes the carried record without any tag field, so the
// published shape matches the inbound wire shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch {
	case e.Kind == KindInertial && e.Inertial != nil:
		return json.Marshal(e.Inertial)
	case e.Kind == KindRanging && e.Ranging != nil:
		return json.Marshal(e.Ranging)
	}
	return nil, ErrUnknownKind
}
