package srs

import (
	"maps"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// GlobalState is the learning state shared by every card. It is persisted
// alongside the cards.
type GlobalState struct {
	// OptimalFactors is the SM5 matrix, indexed by repetition row and then
	// difficulty column. Missing entries fall back to their initial value.
	OptimalFactors map[int]map[int]float64 `json:"optimal_factors,omitempty"`

	// MeanQuality is the running mean grade of the current review period,
	// nil when no grade has been recorded in it.
	MeanQuality *float64 `json:"mean_quality,omitempty"`

	// TotalReviews counts grades folded into MeanQuality.
	TotalReviews int `json:"total_reviews"`

	LastSession *time.Time `json:"last_session,omitempty"`
}

// NewGlobalState returns an empty global state.
func NewGlobalState() *GlobalState {
	return &GlobalState{OptimalFactors: make(map[int]map[int]float64)}
}

// Refresh starts a session at now. If the previous session is older than
// resetAfter the mean quality and its counter are reset. It reports whether
// a reset happened.
func (g *GlobalState) Refresh(now time.Time, resetAfter time.Duration) bool {
	reset := false
	if g.LastSession != nil && now.Sub(*g.LastSession) > resetAfter {
		g.MeanQuality = nil
		g.TotalReviews = 0
		reset = true
	}
	g.LastSession = &now
	return reset
}

// RecordGrade folds one grade into the running mean quality.
func (g *GlobalState) RecordGrade(grade domain.QualityGrade) {
	q := float64(grade)
	mean := q
	if g.MeanQuality != nil {
		total := float64(g.TotalReviews)
		prev := *g.MeanQuality
		mean = (total*prev + q) / (total + 1)
	}
	g.TotalReviews++
	g.MeanQuality = &mean
}

// optimalFactor returns the stored factor for (row, col) and whether one was
// stored.
func (g *GlobalState) optimalFactor(row, col int) (float64, bool) {
	of, ok := g.OptimalFactors[row][col]
	return of, ok
}

func (g *GlobalState) setOptimalFactor(row, col int, of float64) {
	if g.OptimalFactors == nil {
		g.OptimalFactors = make(map[int]map[int]float64)
	}
	cols := g.OptimalFactors[row]
	if cols == nil {
		cols = make(map[int]float64)
		g.OptimalFactors[row] = cols
	}
	cols[col] = of
}

// Clone returns a deep copy.
func (g *GlobalState) Clone() *GlobalState {
	out := &GlobalState{
		OptimalFactors: make(map[int]map[int]float64, len(g.OptimalFactors)),
		TotalReviews:   g.TotalReviews,
	}
	for row, cols := range g.OptimalFactors {
		out.OptimalFactors[row] = maps.Clone(cols)
	}
	if g.MeanQuality != nil {
		m := *g.MeanQuality
		out.MeanQuality = &m
	}
	if g.LastSession != nil {
		t := *g.LastSession
		out.LastSession = &t
	}
	return out
}
