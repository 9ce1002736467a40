package srs

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)

func newTestCard(t *testing.T, state domain.AlgorithmState) *domain.Card {
	t.Helper()
	card, err := domain.NewCard(domain.CardCandidate{
		Prompt:   "What does SM stand for?",
		Response: "SuperMemo",
		Source:   domain.SourceLocation{FilePath: "srs.md", StartLine: 1, EndLine: 1},
	}, state, now.Add(-30*day))
	require.NoError(t, err)
	return card
}

func newTestService(t *testing.T, name domain.Algorithm) (Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc, err := NewServiceWithParams(name, NewDefaultParams(), logger)
	require.NoError(t, err)
	return svc, &buf
}

func TestNewDefaultService(t *testing.T) {
	t.Parallel()

	service, err := NewDefaultService(domain.AlgorithmSM5)
	require.NoError(t, err, "Failed to create SRS service")

	defaultService, ok := service.(*defaultService)
	require.True(t, ok, "Expected *defaultService type")
	assert.NotNil(t, defaultService.params)
	assert.Equal(t, domain.AlgorithmSM5, service.Algorithm())

	_, err = NewDefaultService("leitner")
	assert.ErrorIs(t, err, domain.ErrUnknownAlgorithm)

	_, err = NewServiceWithParams(domain.AlgorithmSM2, nil, slog.Default())
	assert.Error(t, err)
	_, err = NewServiceWithParams(domain.AlgorithmSM2, NewDefaultParams(), nil)
	assert.Error(t, err)
}

func TestSchedule_NextDue(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, domain.AlgorithmSM2)

	state, due, err := service.Schedule(nil, domain.GradePerfect, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 1, state.RepetitionCount())
	assert.Equal(t, now.Add(day), due)

	state, due, err = service.Schedule(state, domain.GradeForgotten, nil, now)
	require.NoError(t, err)
	assert.Equal(t, 0, state.RepetitionCount())
	assert.Equal(t, now.Add(10*time.Minute), due)

	_, _, err = service.Schedule(state, 6, nil, now)
	assert.ErrorIs(t, err, domain.ErrInvalidGrade)
}

func TestCalculateNextReview(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name            string
		grade           domain.QualityGrade
		expectFailures  int
		expectRepsState int
	}{
		{name: "forgotten counts a failure", grade: domain.GradeForgotten, expectFailures: 1, expectRepsState: 0},
		{name: "easy to recall counts a failure", grade: domain.GradeEasyToRecall, expectFailures: 1, expectRepsState: 0},
		{name: "difficult success", grade: domain.GradeCorrectWithDifficulty, expectFailures: 0, expectRepsState: 1},
		{name: "perfect", grade: domain.GradePerfect, expectFailures: 0, expectRepsState: 1},
	}

	for _, alg := range domain.Algorithms {
		for _, tc := range testCases {
			t.Run(string(alg)+" "+tc.name, func(t *testing.T) {
				t.Parallel()

				service, _ := newTestService(t, alg)
				card := newTestCard(t, domain.NewAlgorithmState(alg))

				updated, err := service.CalculateNextReview(card, tc.grade, NewGlobalState(), now)
				require.NoError(t, err)

				assert.Equal(t, tc.expectFailures, updated.History.Failures)
				assert.Equal(t, 1, updated.History.Repetitions)
				require.NotNil(t, updated.History.LastReviewed)
				assert.Equal(t, now, *updated.History.LastReviewed)
				assert.Equal(t, tc.expectRepsState, updated.State.RepetitionCount())
				assert.False(t, updated.NextDue.Before(now.Add(10*time.Minute)))

				// Original card untouched
				assert.Zero(t, card.History.Repetitions)
				assert.Nil(t, card.History.LastReviewed)
				assert.Zero(t, card.State.RepetitionCount())
			})
		}
	}
}

func TestCalculateNextReview_LeechExample(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, domain.AlgorithmSM2)
	card := newTestCard(t, &domain.SM2State{EaseFactor: 1.9, Interval: 12 * day, Repetitions: 3})
	card.History.Failures = 14

	updated, err := service.CalculateNextReview(card, domain.GradeRemembered, nil, now)
	require.NoError(t, err)

	assert.Equal(t, 15, updated.History.Failures)
	assert.True(t, domain.IsLeech(updated.History.Failures, 15))
	assert.Equal(t, 10*time.Minute, updated.State.CurrentInterval())
	assert.Equal(t, 0, updated.State.RepetitionCount())
	assert.Equal(t, now.Add(10*time.Minute), updated.NextDue)
}

func TestCalculateNextReview_ReinitializesForeignState(t *testing.T) {
	t.Parallel()

	service, logs := newTestService(t, domain.AlgorithmSimple8)
	card := newTestCard(t, &domain.SM2State{EaseFactor: 2.1, Interval: 40 * day, Repetitions: 6})

	updated, err := service.CalculateNextReview(card, domain.GradePerfect, nil, now)
	require.NoError(t, err)

	require.IsType(t, &domain.Simple8State{}, updated.State)
	assert.Equal(t, 1, updated.State.RepetitionCount())
	assert.Equal(t, now.Add(2*day), updated.NextDue)
	assert.Contains(t, logs.String(), "reinitializing card state")
	assert.Contains(t, logs.String(), `"level":"WARN"`)
}

func TestCalculateNextReview_ReinitializesInvalidState(t *testing.T) {
	t.Parallel()

	service, logs := newTestService(t, domain.AlgorithmSM2)
	card := newTestCard(t, &domain.SM2State{EaseFactor: -4, Interval: 3 * day, Repetitions: 2})

	updated, err := service.CalculateNextReview(card, domain.GradePerfect, nil, now)
	require.NoError(t, err)

	sm2 := updated.State.(*domain.SM2State)
	assert.Equal(t, 1, sm2.Repetitions)
	assert.InDelta(t, 2.6, sm2.EaseFactor, 1e-9)
	assert.Contains(t, logs.String(), "reinitializing invalid card state")
}

func TestCalculateNextReview_FoldsGradeIntoGlobal(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, domain.AlgorithmSM5)
	global := NewGlobalState()
	card := newTestCard(t, nil)

	updated, err := service.CalculateNextReview(card, domain.GradePerfect, global, now)
	require.NoError(t, err)
	_, err = service.CalculateNextReview(updated, domain.GradeCorrectWithDifficulty, global, now.Add(4*day))
	require.NoError(t, err)

	require.NotNil(t, global.MeanQuality)
	assert.InDelta(t, 4.0, *global.MeanQuality, 1e-9)
	assert.Equal(t, 2, global.TotalReviews)
	assert.NotEmpty(t, global.OptimalFactors)
}

func TestCalculateNextReview_NilCard(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, domain.AlgorithmSM2)
	_, err := service.CalculateNextReview(nil, domain.GradePerfect, nil, now)
	assert.ErrorIs(t, err, ErrNilCard)
}

func TestGlobalState_Refresh(t *testing.T) {
	t.Parallel()

	g := NewGlobalState()
	assert.False(t, g.Refresh(now, 7*day))
	g.RecordGrade(domain.GradePerfect)
	g.RecordGrade(domain.GradeCorrectWithHesitation)
	g.RecordGrade(domain.GradeForgotten)
	require.NotNil(t, g.MeanQuality)
	assert.InDelta(t, 3.0, *g.MeanQuality, 1e-9)

	assert.False(t, g.Refresh(now.Add(6*day), 7*day))
	assert.NotNil(t, g.MeanQuality)

	assert.True(t, g.Refresh(now.Add(14*day), 7*day))
	assert.Nil(t, g.MeanQuality)
	assert.Zero(t, g.TotalReviews)
	assert.Equal(t, now.Add(14*day), *g.LastSession)

	cp := g.Clone()
	cp.RecordGrade(domain.GradePerfect)
	assert.Nil(t, g.MeanQuality)
}
