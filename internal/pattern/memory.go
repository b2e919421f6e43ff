package pattern

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// DefaultThreshold is the similarity at or above which a vector is recognized.
const DefaultThreshold = 0.75

// #region types

// Entry is one stored pattern.
type Entry struct {
	ID        string
	Vector    quadvec.QuadVector
	CreatedAt time.Time
	Hits      int
	LastSeen  time.Time
}

// Report is the outcome of matching a vector against memory.
type Report struct {
	Recognized bool
	Similarity float64
	MatchedID  string // empty unless Recognized
}

// DimensionStat tracks how often a dimension fired and its mean strength.
// Every ingest visits every dimension; only non-zero strengths are counted
// and averaged, so Mean is the typical strength when the dimension fires.
type DimensionStat struct {
	Count int
	Mean  float64
}

// DimensionStats holds one stat per label dimension.
type DimensionStats map[quadvec.Label]DimensionStat

// #endregion types

// #region memory

// Memory stores pattern entries for one session. Not safe for concurrent
// use; the session controller serializes access.
type Memory struct {
	threshold float64
	entries   []Entry
	stats     map[quadvec.Label]DimensionStat
	ingested  int
	now       func() time.Time
}

// NewMemory creates a Memory. threshold <= 0 selects DefaultThreshold.
func NewMemory(threshold float64) *Memory {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Memory{
		threshold: threshold,
		stats:     make(map[quadvec.Label]DimensionStat, 4),
		now:       time.Now,
	}
}

// WithClock overrides the clock used for timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Threshold returns the recognition threshold.
func (m *Memory) Threshold() float64 {
	return m.threshold
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	return len(m.entries)
}

// Ingested returns how many vectors have been ingested.
func (m *Memory) Ingested() int {
	return m.ingested
}

// #endregion memory

// #region match

// Match computes the recognition report for v without mutating memory.
func (m *Memory) Match(v quadvec.QuadVector) Report {
	idx, sim := m.best(v)
	if idx >= 0 && sim >= m.threshold {
		return Report{Recognized: true, Similarity: sim, MatchedID: m.entries[idx].ID}
	}
	return Report{Similarity: sim}
}

func (m *Memory) best(v quadvec.QuadVector) (int, float64) {
	best, bestSim := -1, 0.0
	for i, e := range m.entries {
		sim := Similarity(v, e.Vector)
		if best < 0 || sim > bestSim {
			best, bestSim = i, sim
		}
	}
	return best, bestSim
}

// #endregion match

// #region ingest

// Ingest matches v, bumps the winner on recognition or stores v as a new
// entry otherwise, and always updates dimension stats. Zero vectors are
// never stored.
func (m *Memory) Ingest(v quadvec.QuadVector) Report {
	m.ingested++
	m.updateStats(v)

	now := m.now()
	idx, sim := m.best(v)
	if idx >= 0 && sim >= m.threshold {
		m.entries[idx].Hits++
		m.entries[idx].LastSeen = now
		return Report{Recognized: true, Similarity: sim, MatchedID: m.entries[idx].ID}
	}
	if !v.IsZero() {
		m.entries = append(m.entries, Entry{
			ID:        uuid.New().String(),
			Vector:    v,
			CreatedAt: now,
			LastSeen:  now,
		})
	}
	return Report{Similarity: sim}
}

func (m *Memory) updateStats(v quadvec.QuadVector) {
	for _, l := range quadvec.Labels() {
		strength := v.Strength(l)
		if strength == 0 {
			continue
		}
		s := m.stats[l]
		s.Count++
		s.Mean += (strength - s.Mean) / float64(s.Count)
		m.stats[l] = s
	}
}

// #endregion ingest

// #region stats

// Stats returns a snapshot of dimension stats.
func (m *Memory) Stats() DimensionStats {
	out := make(DimensionStats, 4)
	for _, l := range quadvec.Labels() {
		out[l] = m.stats[l]
	}
	return out
}

// Entries returns a copy of stored entries.
func (m *Memory) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// #endregion stats

// #region prune

// Prune removes entries for which drop returns true and reports how many
// were removed. Eviction policy belongs to the caller.
func (m *Memory) Prune(drop func(Entry) bool) int {
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if drop(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed
}

// #endregion prune

// #region similarity

// Similarity is cosine similarity on the 4-tuple mapped to [0,1] via (cos+1)/2.
// Zero-magnitude vectors have similarity 0.
func Similarity(a, b quadvec.QuadVector) float64 {
	x, y := a.Components(), b.Components()
	var dot, normA, normB float64
	for i := range x {
		dot += x[i] * y[i]
		normA += x[i] * x[i]
		normB += y[i] * y[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	cos := dot / denom
	return clamp((cos + 1) / 2)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion similarity
