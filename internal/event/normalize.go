package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedEvent is returned when a raw event is missing mandatory fields
// or carries values outside the known enumerations.
var ErrMalformedEvent = errors.New("malformed event")

// #region normalize

// Normalize validates a raw event and produces a typed Record.
// Numeric values are clamped; missing mandatory fields are rejected.
func Normalize(raw RawEvent) (Record, error) {
	if raw.At == nil || raw.At.IsZero() {
		return Record{}, malformed("missing timestamp")
	}
	rec := Record{
		Kind:    Kind(strings.ToLower(strings.TrimSpace(raw.Kind))),
		At:      *raw.At,
		Request: strings.TrimSpace(raw.Request),
	}

	switch rec.Kind {
	case KindPointer:
		if raw.X == nil || raw.Y == nil {
			return Record{}, malformed("pointer event missing x/y")
		}
		if raw.DwellMs == nil {
			return Record{}, malformed("pointer event missing dwell_ms")
		}
		if raw.Velocity == nil {
			return Record{}, malformed("pointer event missing velocity")
		}
		if raw.IsReturn == nil {
			return Record{}, malformed("pointer event missing is_return")
		}
		rec.Pointer = Pointer{
			X:        clampUnit(*raw.X),
			Y:        clampUnit(*raw.Y),
			Velocity: nonNegative(*raw.Velocity),
			DwellMs:  nonNegative(*raw.DwellMs),
			IsReturn: *raw.IsReturn,
		}
	case KindKey:
		if raw.InterKeyMs == nil {
			return Record{}, malformed("key event missing inter_key_ms")
		}
		class := KeyClass(strings.ToLower(raw.Class))
		switch class {
		case KeyLetter, KeyDigit, KeySymbol, KeyControl:
		default:
			return Record{}, malformed(fmt.Sprintf("unknown key class %q", raw.Class))
		}
		if raw.HadCorrection == nil {
			return Record{}, malformed("key event missing had_correction")
		}
		rec.Key = Key{
			InterKeyMs:    nonNegative(*raw.InterKeyMs),
			Class:         class,
			HadCorrection: *raw.HadCorrection,
		}
	case KindClipboard:
		op := ClipOp(strings.ToLower(raw.Op))
		switch op {
		case ClipCopy, ClipCut, ClipPaste:
		default:
			return Record{}, malformed(fmt.Sprintf("unknown clipboard op %q", raw.Op))
		}
		if raw.ContentLength == nil {
			return Record{}, malformed("clipboard event missing content_length")
		}
		if raw.ExternalOrigin == nil {
			return Record{}, malformed("clipboard event missing external_origin")
		}
		// duration_ms is the one optional payload field
		rec.Clipboard = Clipboard{
			Op:             op,
			DurationMs:     nonNegative(deref(raw.DurationMs)),
			ContentLength:  max(*raw.ContentLength, 0),
			ExternalOrigin: *raw.ExternalOrigin,
		}
	case "":
		return Record{}, malformed("missing kind")
	default:
		return Record{}, malformed(fmt.Sprintf("unknown kind %q", raw.Kind))
	}

	return rec, nil
}

// Decode parses a JSON payload and normalizes it.
func Decode(data []byte) (Record, error) {
	raw, err := DecodeRaw(data)
	if err != nil {
		return Record{}, err
	}
	return Normalize(raw)
}

// DecodeRaw parses a JSON event without normalizing it.
func DecodeRaw(data []byte) (RawEvent, error) {
	var raw RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return raw, nil
}

// ToRaw converts a Record back to its adapter shape. Normalize(ToRaw(r))
// yields r for any normalized r.
func ToRaw(rec Record) RawEvent {
	at := rec.At
	raw := RawEvent{Kind: string(rec.Kind), At: &at, Request: rec.Request}
	switch rec.Kind {
	case KindPointer:
		p := rec.Pointer
		raw.X, raw.Y, raw.Velocity, raw.DwellMs = &p.X, &p.Y, &p.Velocity, &p.DwellMs
		raw.IsReturn = &p.IsReturn
	case KindKey:
		k := rec.Key
		raw.InterKeyMs, raw.HadCorrection = &k.InterKeyMs, &k.HadCorrection
		raw.Class = string(k.Class)
	case KindClipboard:
		c := rec.Clipboard
		raw.Op = string(c.Op)
		raw.DurationMs, raw.ContentLength, raw.ExternalOrigin = &c.DurationMs, &c.ContentLength, &c.ExternalOrigin
	}
	return raw
}

// #endregion normalize

// #region helpers

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedEvent, reason)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
