package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardSetOf(cards ...*Card) CardSet {
	set := make(CardSet, len(cards))
	for _, c := range cards {
		set[c.ID] = c
	}
	return set
}

func TestDueCards_OrderAndFilter(t *testing.T) {
	t.Parallel()

	overdue := newTestCard(t, "overdue")
	overdue.NextDue = testNow.Add(-48 * time.Hour)
	dueNow := newTestCard(t, "due now")
	dueNow.NextDue = testNow
	future := newTestCard(t, "future")
	future.NextDue = testNow.Add(24 * time.Hour)
	orphan := newTestCard(t, "orphan")
	orphan.NextDue = testNow.Add(-time.Hour)
	orphan.Orphaned = true

	got := DueCards(cardSetOf(overdue, dueNow, future, orphan), DueQuery{Now: testNow, Algorithm: AlgorithmSM5})
	require.Len(t, got, 2)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.Equal(t, dueNow.ID, got[1].ID)

	got = DueCards(cardSetOf(overdue, dueNow, future, orphan), DueQuery{
		Now:            testNow,
		Algorithm:      AlgorithmSM5,
		IncludeOrphans: true,
		Limit:          2,
	})
	require.Len(t, got, 2)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.Equal(t, orphan.ID, got[1].ID)
}

func TestDueCards_TiesBrokenByID(t *testing.T) {
	t.Parallel()

	var cards []*Card
	for _, p := range []string{"one", "two", "three", "four", "five"} {
		c := newTestCard(t, p)
		c.NextDue = testNow.Add(-time.Minute)
		cards = append(cards, c)
	}

	got := DueCards(cardSetOf(cards...), DueQuery{Now: testNow})
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Negative(t, got[i-1].ID.Compare(got[i].ID))
	}
}

func TestDueCards_Tags(t *testing.T) {
	t.Parallel()

	golang := newTestCard(t, "go", "go")
	rust := newTestCard(t, "rust", "rust")
	both := newTestCard(t, "both", "go", "rust")

	got := DueCards(cardSetOf(golang, rust, both), DueQuery{Now: testNow, Tags: []string{"GO"}})
	ids := []CardID{}
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []CardID{golang.ID, both.ID}, ids)
}

func TestDueCards_Leeches(t *testing.T) {
	t.Parallel()

	leech := newTestCard(t, "leech")
	leech.History.Failures = 15
	leech.History.Leech = true
	normal := newTestCard(t, "normal")

	set := cardSetOf(leech, normal)

	got := DueCards(set, DueQuery{Now: testNow, LeechMethod: LeechSkip})
	require.Len(t, got, 1)
	assert.Equal(t, normal.ID, got[0].ID)

	got = DueCards(set, DueQuery{Now: testNow, LeechMethod: LeechWarn})
	assert.Len(t, got, 2)

	// A raised threshold overrides the cached flag.
	got = DueCards(set, DueQuery{Now: testNow, LeechMethod: LeechSkip, LeechThreshold: 20})
	assert.Len(t, got, 2)
}

func TestDueCards_ForeignStateIsDueNow(t *testing.T) {
	t.Parallel()

	sm2 := newTestCard(t, "sm2")
	sm2.State = NewAlgorithmState(AlgorithmSM2)
	sm2.NextDue = testNow.Add(72 * time.Hour)
	stateless := newTestCard(t, "stateless")
	stateless.State = nil
	stateless.NextDue = testNow.Add(time.Hour)
	sm5 := newTestCard(t, "sm5")
	sm5.NextDue = testNow.Add(72 * time.Hour)

	got := DueCards(cardSetOf(sm2, stateless, sm5), DueQuery{Now: testNow, Algorithm: AlgorithmSM5})
	ids := []CardID{}
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []CardID{sm2.ID, stateless.ID}, ids)
}

func TestDueCards_Cram(t *testing.T) {
	t.Parallel()

	future := newTestCard(t, "future")
	future.NextDue = testNow.Add(30 * 24 * time.Hour)
	recent := newTestCard(t, "recent")
	recentTime := testNow.Add(-2 * time.Hour)
	recent.History.LastReviewed = &recentTime
	old := newTestCard(t, "old")
	oldTime := testNow.Add(-13 * time.Hour)
	old.History.LastReviewed = &oldTime

	got := DueCards(cardSetOf(future, recent, old), DueQuery{Now: testNow, Cram: true, CramHours: 12})
	ids := []CardID{}
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []CardID{future.ID, old.ID}, ids)
}

func TestIsLeech(t *testing.T) {
	t.Parallel()

	assert.False(t, IsLeech(14, 15))
	assert.True(t, IsLeech(15, 15))
	assert.True(t, IsLeech(16, 15))
}
