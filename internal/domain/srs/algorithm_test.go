package srs

import (
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAlgorithm(t *testing.T, name domain.Algorithm) Algorithm {
	t.Helper()
	alg, err := NewAlgorithm(name, NewDefaultParams())
	require.NoError(t, err)
	return alg
}

// review applies grades in order and returns the resulting intervals.
func review(
	t *testing.T,
	alg Algorithm,
	global *GlobalState,
	grades ...domain.QualityGrade,
) (domain.AlgorithmState, []time.Duration) {
	t.Helper()
	state := alg.Initial()
	var intervals []time.Duration
	for _, g := range grades {
		if global != nil {
			global.RecordGrade(g)
		}
		next, err := alg.Next(state, g, global)
		require.NoError(t, err)
		intervals = append(intervals, next.CurrentInterval())
		state = next
	}
	return state, intervals
}

func TestNewAlgorithm(t *testing.T) {
	t.Parallel()

	for _, name := range domain.Algorithms {
		alg, err := NewAlgorithm(name, nil)
		require.NoError(t, err)
		assert.Equal(t, name, alg.Name())
		assert.Equal(t, name, alg.Initial().Algorithm())
	}

	_, err := NewAlgorithm("fsrs", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)
}

func TestNewEaseFactor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		grade    domain.QualityGrade
		expected float64
	}{
		{domain.GradeForgotten, 1.70},
		{domain.GradeRemembered, 1.96},
		{domain.GradeEasyToRecall, 2.18},
		{domain.GradeCorrectWithDifficulty, 2.36},
		{domain.GradeCorrectWithHesitation, 2.50},
		{domain.GradePerfect, 2.60},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("grade %d", tc.grade), func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.expected, newEaseFactor(2.5, tc.grade, 1.3), 1e-9)
		})
	}

	assert.Equal(t, 1.3, newEaseFactor(1.2, domain.GradeForgotten, 1.3))
}

func TestRoundInterval(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2*day, roundInterval(2.4849))
	assert.Equal(t, 3*day, roundInterval(2.5))
	assert.Equal(t, 1*day, roundInterval(1.0))
	assert.Equal(t, 12*time.Hour, roundInterval(0.5))
	assert.Equal(t, 10*time.Minute, roundInterval(10.2/(24*60)))
	assert.Equal(t, time.Minute, roundInterval(0))
}

func TestSM2_Progression(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM2)
	state, intervals := review(t, alg, nil,
		domain.GradePerfect, domain.GradePerfect, domain.GradePerfect)

	assert.Equal(t, []time.Duration{1 * day, 6 * day, 16 * day}, intervals)
	sm2 := state.(*domain.SM2State)
	assert.Equal(t, 3, sm2.Repetitions)
	assert.InDelta(t, 2.8, sm2.EaseFactor, 1e-9)
}

func TestSM2_FailureKeepsEaseFactor(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM2)
	state := &domain.SM2State{EaseFactor: 2.2, Interval: 15 * day, Repetitions: 4}

	next, err := alg.Next(state, domain.GradeForgotten, nil)
	require.NoError(t, err)

	sm2 := next.(*domain.SM2State)
	assert.Equal(t, 2.2, sm2.EaseFactor)
	assert.Equal(t, 0, sm2.Repetitions)
	assert.Equal(t, 10*time.Minute, sm2.Interval)
	assert.Equal(t, 4, state.Repetitions, "input state must not change")
}

func TestSM5_Progression(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM5)
	global := NewGlobalState()

	state, intervals := review(t, alg, global,
		domain.GradePerfect, domain.GradePerfect, domain.GradePerfect)
	assert.Equal(t, []time.Duration{4 * day, 11 * day, 31 * day}, intervals)

	sm5 := state.(*domain.SM5State)
	assert.Equal(t, 3, sm5.Repetitions)
	assert.Equal(t, 15, sm5.Difficulty)
	assert.InDelta(t, 2.8, easeFactorOf(sm5.Difficulty), 1e-9)

	of, ok := global.optimalFactor(0, 13)
	require.True(t, ok)
	assert.InDelta(t, 4.14, of, 1e-9)
	of, ok = global.optimalFactor(1, 14)
	require.True(t, ok)
	assert.InDelta(t, 2.691, of, 1e-9)

	prevDifficulty := sm5.Difficulty
	next, err := alg.Next(state, domain.GradeForgotten, global)
	require.NoError(t, err)
	failed := next.(*domain.SM5State)
	assert.Equal(t, 0, failed.Repetitions)
	assert.Equal(t, 10*time.Minute, failed.Interval)
	assert.Equal(t, prevDifficulty, failed.Difficulty)
}

func TestSM5_FailureStillTeachesMatrix(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM5)
	global := NewGlobalState()

	_, err := alg.Next(alg.Initial(), domain.GradeForgotten, global)
	require.NoError(t, err)
	assert.NotEmpty(t, global.OptimalFactors[0])
}

func TestSM5_SaturatesIndexes(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM5)
	global := NewGlobalState()
	state := &domain.SM5State{Difficulty: 40, Interval: 100 * day, Repetitions: 57}

	next, err := alg.Next(state, domain.GradePerfect, global)
	require.NoError(t, err)
	sm5 := next.(*domain.SM5State)
	assert.Equal(t, domain.SM5DifficultyLevels-1, sm5.Difficulty)
	assert.GreaterOrEqual(t, sm5.Interval, 100*day)

	_, ok := global.optimalFactor(maxRepetitionRow, domain.SM5DifficultyLevels-1)
	assert.True(t, ok)
}

func TestSM5_ClampsOptimalFactor(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSM5).(*sm5)
	global := NewGlobalState()
	global.setOptimalFactor(0, 12, 50)
	global.setOptimalFactor(1, 12, 0.01)

	assert.Equal(t, 10.0, alg.optimalFactor(global, 0, 12))
	assert.Equal(t, 1.2, alg.optimalFactor(global, 1, 12))
}

func TestSimple8_Progression(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSimple8)
	global := NewGlobalState()

	state, intervals := review(t, alg, global,
		domain.GradePerfect, domain.GradePerfect, domain.GradePerfect)
	assert.Equal(t, []time.Duration{2 * day, 12 * day, 42 * day}, intervals)

	s8 := state.(*domain.Simple8State)
	assert.Equal(t, 3, s8.Repetitions)
	assert.Len(t, s8.Window, 3)

	next, err := alg.Next(state, domain.GradeForgotten, global)
	require.NoError(t, err)
	failed := next.(*domain.Simple8State)
	assert.Equal(t, 0, failed.Repetitions)
	assert.Equal(t, 1, failed.Lapses)
	assert.Empty(t, failed.Window)
	assert.Equal(t, 10*time.Minute, failed.Interval)
}

func TestSimple8_LapsesShortenFirstInterval(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSimple8)

	next, err := alg.Next(&domain.Simple8State{Lapses: 20}, domain.GradePerfect, nil)
	require.NoError(t, err)
	interval := next.CurrentInterval()
	assert.Greater(t, interval, time.Duration(0))
	assert.Less(t, interval, day)
	assert.Zero(t, interval%time.Minute)

	lapsed := alg.(*simple8)
	assert.Less(t, lapsed.firstInterval(1), lapsed.firstInterval(0))
	assert.Greater(t, lapsed.firstInterval(100), 0.0)
}

func TestSimple8_LapseRestartsSequence(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSimple8)
	cur := &domain.Simple8State{
		Interval:    12 * day,
		Repetitions: 2,
		Window: []domain.Simple8Review{
			{Interval: 2 * day, Grade: domain.GradePerfect},
			{Interval: 12 * day, Grade: domain.GradePerfect},
		},
	}

	next, err := alg.Next(cur, domain.QualityGrade(2), nil)
	require.NoError(t, err)
	lapsed := next.(*domain.Simple8State)
	assert.Zero(t, lapsed.Repetitions)
	assert.Equal(t, 1, lapsed.Lapses)
	assert.Empty(t, lapsed.Window)
	assert.Equal(t, 10*time.Minute, lapsed.Interval)

	// The next success starts over from the lapse-shortened first interval.
	again, err := alg.Next(lapsed, domain.GradePerfect, nil)
	require.NoError(t, err)
	recovered := again.(*domain.Simple8State)
	assert.Equal(t, 1, recovered.Repetitions)
	assert.Equal(t, roundInterval(alg.(*simple8).firstInterval(1)), recovered.Interval)
	assert.Len(t, recovered.Window, 1)
	assert.Equal(t, 2, cur.Repetitions, "input state must not be mutated")
}

func TestSimple8_WindowIsBounded(t *testing.T) {
	t.Parallel()

	alg := mustAlgorithm(t, domain.AlgorithmSimple8)
	grades := make([]domain.QualityGrade, 12)
	for i := range grades {
		grades[i] = domain.GradeCorrectWithHesitation
	}

	state, _ := review(t, alg, NewGlobalState(), grades...)
	s8 := state.(*domain.Simple8State)
	assert.Len(t, s8.Window, domain.Simple8WindowSize)
	assert.Equal(t, s8.Interval, s8.Window[len(s8.Window)-1].Interval)
}

func TestSimple8Helpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2.0, intervalFactor(2.0, 0))
	assert.Greater(t, intervalFactor(2.5, 1), intervalFactor(2.5, 2))
	assert.Greater(t, intervalFactor(2.5, 2), intervalFactor(2.5, 3))

	for q := 1.0; q < 5; q++ {
		assert.Greater(t, qualityToEase(q+1), qualityToEase(q))
	}

	window := []domain.Simple8Review{{Grade: 3}, {Grade: 5}}
	// (1*3 + 2*5 + 3*4) / 6
	assert.InDelta(t, 25.0/6, weightedQuality(window, 4, nil), 1e-9)

	mean := 0.0
	global := &GlobalState{MeanQuality: &mean}
	assert.InDelta(t, 25.0/7, weightedQuality(window, 4, global), 1e-9)
}

func TestAlgorithms_RejectForeignState(t *testing.T) {
	t.Parallel()

	for _, name := range domain.Algorithms {
		alg := mustAlgorithm(t, name)
		for _, other := range domain.Algorithms {
			if other == name {
				continue
			}
			_, err := alg.Next(domain.NewAlgorithmState(other), domain.GradePerfect, nil)
			assert.ErrorIs(t, err, domain.ErrAlgorithmStateMismatch, "%s given %s state", name, other)
		}
	}
}

func TestAlgorithms_MonotonicUnderPerfectGrades(t *testing.T) {
	t.Parallel()

	for _, name := range domain.Algorithms {
		t.Run(string(name), func(t *testing.T) {
			t.Parallel()

			grades := make([]domain.QualityGrade, 10)
			for i := range grades {
				grades[i] = domain.GradePerfect
			}
			_, intervals := review(t, mustAlgorithm(t, name), NewGlobalState(), grades...)
			for i := 1; i < len(intervals); i++ {
				assert.GreaterOrEqual(t, intervals[i], intervals[i-1], "review %d", i)
			}
		})
	}
}

func TestAlgorithms_FailureReset(t *testing.T) {
	t.Parallel()

	for _, name := range domain.Algorithms {
		for _, g := range []domain.QualityGrade{0, 1, 2} {
			t.Run(fmt.Sprintf("%s grade %d", name, g), func(t *testing.T) {
				t.Parallel()

				alg := mustAlgorithm(t, name)
				global := NewGlobalState()
				state, _ := review(t, alg, global, domain.GradePerfect, domain.GradePerfect, domain.GradePerfect)

				next, err := alg.Next(state, g, global)
				require.NoError(t, err)
				assert.Zero(t, next.RepetitionCount())
				assert.Equal(t, 10*time.Minute, next.CurrentInterval())
			})
		}
	}
}
