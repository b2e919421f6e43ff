package orchestrator

// #region imports
import (
	"time"

	"github.com/ixtech/aniota/lic-controller/internal/event"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #endregion

// #region keywords

// requestKeywords maps learner request words to the label they ask for.
var requestKeywords = map[string]quadvec.Label{
	"harder":    quadvec.Expand,
	"challenge": quadvec.Expand,
	"deeper":    quadvec.Expand,
	"more":      quadvec.Expand,

	"explore":   quadvec.Explore,
	"different": quadvec.Explore,
	"other":     quadvec.Explore,
	"new":       quadvec.Explore,

	"apply":   quadvec.Extend,
	"connect": quadvec.Extend,
	"use":     quadvec.Extend,
	"real":    quadvec.Extend,

	"review":   quadvec.Review,
	"again":    quadvec.Review,
	"repeat":   quadvec.Review,
	"confused": quadvec.Review,
}

// #endregion

// #region classify-request

// ClassifyRequest maps free learner text to a label. The first request word
// in the text wins.
func ClassifyRequest(text string) (quadvec.Label, string, bool) {
	for _, tok := range knowledge.Tokenize(text) {
		if l, ok := requestKeywords[tok]; ok {
			return l, tok, true
		}
	}
	return "", "", false
}

// #endregion

// #region clipboard-burst

// IsExternalPaste reports whether rec is a paste of externally copied content.
func IsExternalPaste(rec event.Record) bool {
	return rec.Kind == event.KindClipboard &&
		rec.Clipboard.Op == event.ClipPaste &&
		rec.Clipboard.ExternalOrigin
}

// PasteBurst reports whether the current event completes a burst of at least
// min external pastes inside window. Only a paste can complete a burst.
func PasteBurst(rec event.Record, earlier []time.Time, window time.Duration, min int) bool {
	if !IsExternalPaste(rec) {
		return false
	}
	count := 1
	start := rec.At.Add(-window)
	for _, at := range earlier {
		if !at.Before(start) && !at.After(rec.At) {
			count++
		}
	}
	return count >= min
}

// #endregion
