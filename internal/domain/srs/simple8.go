package srs

import (
	"math"
	"slices"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// simple8 implements the Simple8 scheduler. The first interval shrinks with
// every lapse; later intervals grow by a factor derived from recent grades
// that decays with the number of repetitions.
type simple8 struct {
	params *Params
}

var _ Algorithm = (*simple8)(nil)

func (*simple8) Name() domain.Algorithm { return domain.AlgorithmSimple8 }

func (a *simple8) Initial() domain.AlgorithmState {
	return domain.NewAlgorithmState(domain.AlgorithmSimple8)
}

func (a *simple8) Next(
	state domain.AlgorithmState,
	grade domain.QualityGrade,
	global *GlobalState,
) (domain.AlgorithmState, error) {
	cur, ok := state.(*domain.Simple8State)
	if !ok {
		return nil, mismatch(domain.AlgorithmSimple8, state)
	}
	next := domain.Simple8State{
		Interval: cur.Interval,
		Lapses:   cur.Lapses,
	}

	// A lapse restarts the sequence and clears the grade window.
	if grade.Failed() {
		next.Interval = a.params.MinInterval
		next.Lapses++
		return &next, nil
	}

	if cur.Repetitions == 0 || len(cur.Window) == 0 {
		next.Interval = roundInterval(a.firstInterval(cur.Lapses))
	} else {
		q := weightedQuality(cur.Window, grade, global)
		factor := max(intervalFactor(qualityToEase(q), cur.Repetitions), a.params.Simple8MinFactor)
		next.Interval = grow(cur.Interval, roundInterval(days(cur.Interval)*factor))
	}
	next.Repetitions = cur.Repetitions + 1

	window := append(slices.Clone(cur.Window), domain.Simple8Review{Interval: next.Interval, Grade: grade})
	if n := len(window); n > domain.Simple8WindowSize {
		window = window[n-domain.Simple8WindowSize:]
	}
	next.Window = window

	return &next, nil
}

// firstInterval is the interval in days after the first success, shortened
// for cards that have lapsed before.
func (a *simple8) firstInterval(lapses int) float64 {
	return days(a.params.Simple8FirstInterval) * math.Exp(-a.params.Simple8LapseDecay*float64(lapses))
}

// weightedQuality is the recency-weighted mean of the window grades and the
// current grade, with the period mean quality as a weight-one prior.
func weightedQuality(window []domain.Simple8Review, grade domain.QualityGrade, global *GlobalState) float64 {
	var sum, weight float64
	for i, r := range window {
		w := float64(i + 1)
		sum += w * float64(r.Grade)
		weight += w
	}
	w := float64(len(window) + 1)
	sum += w * float64(grade)
	weight += w

	if global != nil && global.MeanQuality != nil {
		sum += *global.MeanQuality
		weight++
	}
	return sum / weight
}

// intervalFactor decays from ease at the first repetition toward 1.2.
func intervalFactor(ease float64, repetitions int) float64 {
	logR := 0.0
	if repetitions > 0 {
		logR = math.Log2(float64(repetitions))
	}
	return 1.2 + (ease-1.2)*math.Pow(0.5, logR)
}

// qualityToEase maps a mean grade to an ease factor.
func qualityToEase(q float64) float64 {
	return math.FMA(q, math.FMA(q, math.FMA(q, math.FMA(q, 0.0542, -0.4848), 1.4916), -1.2403), 1.4515)
}
