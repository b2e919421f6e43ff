package event

import "time"

// #region kind

// Kind identifies the source device of a learner event.
type Kind string

const (
	KindPointer   Kind = "pointer"
	KindKey       Kind = "key"
	KindClipboard Kind = "clipboard"
)

// KeyClass is the character class of a key press.
type KeyClass string

const (
	KeyLetter  KeyClass = "letter"
	KeyDigit   KeyClass = "digit"
	KeySymbol  KeyClass = "symbol"
	KeyControl KeyClass = "control"
)

// ClipOp is a clipboard operation.
type ClipOp string

const (
	ClipCopy  ClipOp = "copy"
	ClipCut   ClipOp = "cut"
	ClipPaste ClipOp = "paste"
)

// #endregion kind

// #region payloads

// Pointer carries pointer movement data. X and Y are normalized to [0,1].
type Pointer struct {
	X        float64
	Y        float64
	Velocity float64
	DwellMs  float64
	IsReturn bool
}

// Key carries keystroke timing data.
type Key struct {
	InterKeyMs    float64
	Class         KeyClass
	HadCorrection bool
}

// Clipboard carries clipboard operation data.
type Clipboard struct {
	Op             ClipOp
	DurationMs     float64
	ContentLength  int
	ExternalOrigin bool
}

// #endregion payloads

// #region record

// Record is a normalized learner event. Exactly one payload matches Kind.
type Record struct {
	Kind      Kind
	At        time.Time
	Request   string // optional learner request text ("go deeper", "review")
	Pointer   Pointer
	Key       Key
	Clipboard Clipboard
}

// #endregion record

// #region raw

// RawEvent is the adapter-facing shape of an event. Pointer fields let the
// normalizer tell a missing value apart from a zero value.
type RawEvent struct {
	Kind    string     `json:"kind"`
	At      *time.Time `json:"at"`
	Request string     `json:"request,omitempty"`

	// pointer
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Velocity *float64 `json:"velocity,omitempty"`
	DwellMs  *float64 `json:"dwell_ms,omitempty"`
	IsReturn *bool    `json:"is_return,omitempty"`

	// key
	InterKeyMs    *float64 `json:"inter_key_ms,omitempty"`
	Class         string   `json:"class,omitempty"`
	HadCorrection *bool    `json:"had_correction,omitempty"`

	// clipboard
	Op             string   `json:"op,omitempty"`
	DurationMs     *float64 `json:"duration_ms,omitempty"`
	ContentLength  *int     `json:"content_length,omitempty"`
	ExternalOrigin *bool    `json:"external_origin,omitempty"`
}

// #endregion raw
