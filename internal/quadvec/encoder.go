package quadvec

import (
	"errors"
	"fmt"
	"math"

	"github.com/ixtech/aniota/lic-controller/internal/event"
)

// ErrEncodingFailed is returned for events of an unknown kind.
var ErrEncodingFailed = errors.New("encoding failed")

// extendByClass maps key classes to their extend strength.
var extendByClass = map[event.KeyClass]float64{
	event.KeyLetter:  0.1,
	event.KeyDigit:   0.6,
	event.KeySymbol:  0.8,
	event.KeyControl: 0.9,
}

// #region encode

// Encode maps a normalized event to its QuadVector.
func Encode(rec event.Record) (QuadVector, error) {
	switch rec.Kind {
	case event.KindPointer:
		return encodePointer(rec.Pointer), nil
	case event.KindKey:
		return encodeKey(rec.Key)
	case event.KindClipboard:
		return encodeClipboard(rec.Clipboard), nil
	}
	return QuadVector{}, fmt.Errorf("%w: kind %q", ErrEncodingFailed, rec.Kind)
}

// #endregion encode

// #region pointer

// encodePointer: long dwell reads as deliberation, speed as scanning,
// distance from centre as off-centre exploration, returns as review.
func encodePointer(p event.Pointer) QuadVector {
	var expand, explore, review float64
	if p.DwellMs > 1000 {
		expand = math.Min(p.DwellMs/5000, 1)
	}
	if p.Velocity > 10 {
		explore = math.Min(p.Velocity/100, 1)
	}
	extend := math.Abs(p.X-0.5) + math.Abs(p.Y-0.5)
	switch {
	case p.IsReturn:
		review = 0.8
	case p.DwellMs > 3000:
		review = 0.6
	}
	return New(expand, explore, extend, review)
}

// #endregion pointer

// #region key

func encodeKey(k event.Key) (QuadVector, error) {
	extend, ok := extendByClass[k.Class]
	if !ok {
		return QuadVector{}, fmt.Errorf("%w: key class %q", ErrEncodingFailed, k.Class)
	}
	var expand, explore, review float64
	if k.HadCorrection || k.InterKeyMs > 2000 {
		expand = 0.7
	}
	if k.InterKeyMs < 5000 {
		explore = math.Max(0, 1-k.InterKeyMs/5000)
	}
	if k.InterKeyMs > 3000 {
		review = math.Min(k.InterKeyMs/10000, 1)
	}
	return New(expand, explore, extend, review), nil
}

// #endregion key

// #region clipboard

func encodeClipboard(c event.Clipboard) QuadVector {
	var expand, explore, extend, review float64
	if c.Op == event.ClipCopy {
		expand = math.Min(float64(c.ContentLength)/200, 1)
	}
	if c.DurationMs < 1000 && (c.Op == event.ClipCopy || c.Op == event.ClipPaste) {
		explore = 0.8
	}
	if c.Op == event.ClipPaste {
		extend = 0.9
	}
	if c.Op == event.ClipCut || c.DurationMs > 3000 {
		review = 0.7
	}
	return New(expand, explore, extend, review)
}

// #endregion clipboard
