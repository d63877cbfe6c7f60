package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidUTF8 marks a datagram whose bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("model: datagram is not valid utf-8")

	// ErrEmptyDatagram marks a datagram with nothing left after trimming.
	ErrEmptyDatagram = errors.New("model: empty datagram")

	// ErrMalformed marks text that is not a JSON object or has a field of the wrong type.
	ErrMalformed = errors.New("model: malformed payload")

	// ErrAmbiguous marks a payload that satisfies both record shapes.
	ErrAmbiguous = errors.New("model: payload matches both inertial and ranging shapes")

	// ErrUnknownShape marks a JSON object that matches neither record shape.
	ErrUnknownShape = errors.New("model: payload matches no known shape")
)

var (
	rangingRequired  = []string{"source", "range"}
	inertialRequired = []string{"source", "frequency", "acc_x", "acc_y", "acc_z", "rot_x", "rot_y", "rot_z"}
	motionFields     = inertialRequired[1:]
)

// DatagramText validates raw datagram bytes as UTF-8 and strips NUL padding
// and surrounding whitespace.
func DatagramText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	text := strings.TrimSpace(strings.Trim(string(b), "\x00"))
	if text == "" {
		return "", ErrEmptyDatagram
	}
	return text, nil
}

// Decode parses one JSON object into an Envelope.
//
// A "range" key selects ranging validation; otherwise any motion field
// selects inertial validation. A payload carrying every field of both shapes
// is rejected as ambiguous. Unknown keys are ignored and null is accepted for
// optional fields. The returned Envelope keeps any parsed timestamp; callers
// stamp it afterwards.
func Decode(text string) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Envelope{}, fmt.Errorf("%w: not a json object", ErrMalformed)
	}

	_, hasRange := fields["range"]
	switch {
	case hasRange && hasAll(fields, inertialRequired):
		return Envelope{}, ErrAmbiguous
	case hasRange:
		return decodeRanging(fields)
	case hasAny(fields, motionFields):
		return decodeInertial(fields)
	}
	return Envelope{}, ErrUnknownShape
}

func decodeRanging(fields map[string]json.RawMessage) (Envelope, error) {
	var r RangingReading
	var err error
	if r.Source, err = requiredField[string](fields, "source"); err != nil {
		return Envelope{}, err
	}
	if r.Range, err = requiredField[float64](fields, "range"); err != nil {
		return Envelope{}, err
	}
	if r.Destination, err = optionalField[string](fields, "destination"); err != nil {
		return Envelope{}, err
	}
	if r.Timestamp, err = optionalField[uint64](fields, "timestamp"); err != nil {
		return Envelope{}, err
	}
	return NewRanging(r), nil
}

func decodeInertial(fields map[string]json.RawMessage) (Envelope, error) {
	var r InertialReading
	var err error
	if r.Source, err = requiredField[string](fields, "source"); err != nil {
		return Envelope{}, err
	}
	if r.Frequency, err = requiredField[int32](fields, "frequency"); err != nil {
		return Envelope{}, err
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"acc_x", &r.AccX},
		{"acc_y", &r.AccY},
		{"acc_z", &r.AccZ},
		{"rot_x", &r.RotX},
		{"rot_y", &r.RotY},
		{"rot_z", &r.RotZ},
	} {
		if *f.dst, err = requiredField[float64](fields, f.name); err != nil {
			return Envelope{}, err
		}
	}
	if r.Timestamp, err = optionalField[uint64](fields, "timestamp"); err != nil {
		return Envelope{}, err
	}
	return NewInertial(r), nil
}

func requiredField[T any](fields map[string]json.RawMessage, name string) (T, error) {
	var v T
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return v, fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return v, nil
}

func optionalField[T any](fields map[string]json.RawMessage, name string) (*T, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return &v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func hasAll(fields map[string]json.RawMessage, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; !ok {
			return false
		}
	}
	return true
}

func hasAny(fields map[string]json.RawMessage, names []string) bool {
	for _, n := range names {
		if _, ok := fields[n]; ok {
			return true
		}
	}
	return false
}
