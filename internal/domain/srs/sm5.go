package srs

import (
	"math"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// sm5 implements SuperMemo-5. Each card carries a difficulty level; the
// intervals come from an optimal-factor matrix learned across all cards and
// stored in GlobalState.
type sm5 struct {
	params *Params
}

var _ Algorithm = (*sm5)(nil)

// maxRepetitionRow is the last row of the optimal-factor matrix. Cards with
// more repetitions share it.
const maxRepetitionRow = 20

func (*sm5) Name() domain.Algorithm { return domain.AlgorithmSM5 }

func (a *sm5) Initial() domain.AlgorithmState {
	return domain.NewAlgorithmState(domain.AlgorithmSM5)
}

func (a *sm5) Next(
	state domain.AlgorithmState,
	grade domain.QualityGrade,
	global *GlobalState,
) (domain.AlgorithmState, error) {
	cur, ok := state.(*domain.SM5State)
	if !ok {
		return nil, mismatch(domain.AlgorithmSM5, state)
	}
	if global == nil {
		global = NewGlobalState()
	}
	next := *cur

	row := min(max(cur.Repetitions, 0), maxRepetitionRow)
	col := clampDifficulty(cur.Difficulty)
	newCol := difficultyOf(newEaseFactor(easeFactorOf(col), grade, a.params.MinEaseFactor))

	// The matrix learns from every grade, failures included.
	of := a.optimalFactor(global, row, col)
	a.setOptimalFactor(global, row, newCol, a.learn(of, grade))

	if grade.Failed() {
		next.Repetitions = 0
		next.Interval = a.params.MinInterval
		return &next, nil
	}

	factor := a.optimalFactor(global, row, newCol)
	var interval float64
	if cur.Repetitions == 0 {
		interval = factor
	} else {
		interval = days(cur.Interval) * factor
	}

	next.Interval = grow(cur.Interval, roundInterval(math.Round(interval)))
	next.Repetitions++
	next.Difficulty = newCol

	return &next, nil
}

// learn moves an optimal factor toward the observed grade.
func (a *sm5) learn(of float64, grade domain.QualityGrade) float64 {
	f := a.params.OptimalFactorFraction
	observed := of * (0.72 + 0.07*float64(grade))
	return (1-f)*of + f*observed
}

func (a *sm5) optimalFactor(g *GlobalState, row, col int) float64 {
	if of, ok := g.optimalFactor(row, col); ok {
		return a.clampFactor(of)
	}
	if row == 0 {
		return a.params.InitialOptimalFactor
	}
	return easeFactorOf(col)
}

func (a *sm5) setOptimalFactor(g *GlobalState, row, col int, of float64) {
	g.setOptimalFactor(row, col, a.clampFactor(of))
}

func (a *sm5) clampFactor(of float64) float64 {
	if math.IsNaN(of) {
		return a.params.MinOptimalFactor
	}
	return min(max(of, a.params.MinOptimalFactor), a.params.MaxOptimalFactor)
}

// easeFactorOf maps a difficulty level to its ease factor.
func easeFactorOf(difficulty int) float64 {
	return 1.3 + 0.1*float64(clampDifficulty(difficulty))
}

// difficultyOf maps an ease factor to the nearest difficulty level.
func difficultyOf(ef float64) int {
	return clampDifficulty(int(math.Round((ef - 1.3) * 10)))
}

func clampDifficulty(d int) int {
	return min(max(d, 0), domain.SM5DifficultyLevels-1)
}
