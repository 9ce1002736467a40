package srs

import (
	"math"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// sm2 implements SuperMemo-2. The ease factor only changes on success.
type sm2 struct {
	params *Params
}

var _ Algorithm = (*sm2)(nil)

func (*sm2) Name() domain.Algorithm { return domain.AlgorithmSM2 }

func (a *sm2) Initial() domain.AlgorithmState {
	return domain.NewAlgorithmState(domain.AlgorithmSM2)
}

func (a *sm2) Next(
	state domain.AlgorithmState,
	grade domain.QualityGrade,
	_ *GlobalState,
) (domain.AlgorithmState, error) {
	cur, ok := state.(*domain.SM2State)
	if !ok {
		return nil, mismatch(domain.AlgorithmSM2, state)
	}
	next := *cur

	if grade.Failed() {
		next.Repetitions = 0
		next.Interval = a.params.MinInterval
		return &next, nil
	}

	switch cur.Repetitions {
	case 0:
		next.Interval = a.params.SM2FirstInterval
	case 1:
		next.Interval = a.params.SM2SecondInterval
	default:
		next.Interval = roundInterval(math.Round(days(cur.Interval) * cur.EaseFactor))
	}
	next.Interval = grow(cur.Interval, next.Interval)
	next.Repetitions++
	next.EaseFactor = newEaseFactor(cur.EaseFactor, grade, a.params.MinEaseFactor)

	return &next, nil
}
