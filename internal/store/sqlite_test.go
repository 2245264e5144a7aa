package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/fraud"
	"github.com/tre1322/best-of-analyzer/internal/reference"
	"github.com/tre1322/best-of-analyzer/internal/tally"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Anchors_ReplaceKeepsOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceAnchors(ctx, []canon.AnchorRule{
		{Fragment: "zeta", Canonical: "Zeta"},
		{Fragment: "alpha", Canonical: "Alpha"},
	}))
	rules, err := st.Anchors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []canon.AnchorRule{
		{Fragment: "zeta", Canonical: "Zeta"},
		{Fragment: "alpha", Canonical: "Alpha"},
	}, rules)

	require.NoError(t, st.ReplaceAnchors(ctx, []canon.AnchorRule{{Fragment: "beta", Canonical: "Beta"}}))
	rules, err = st.Anchors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []canon.AnchorRule{{Fragment: "beta", Canonical: "Beta"}}, rules)
}

func TestSQLite_ReplaceAnchors_RedeclaredFragment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceAnchors(ctx, []canon.AnchorRule{
		{Fragment: "joes", Canonical: "Joe's Old"},
		{Fragment: "acme", Canonical: "Acme"},
		{Fragment: "joes", Canonical: "Joe's New"},
	}))
	rules, err := st.Anchors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []canon.AnchorRule{
		{Fragment: "joes", Canonical: "Joe's New"},
		{Fragment: "acme", Canonical: "Acme"},
	}, rules)
}

func TestSQLite_Anchors_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	rules, err := st.Anchors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestSQLite_Businesses_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertBusinesses(ctx, []reference.Business{
		{Name: "Pizza Ranch", PlaceID: "p1", CategoryQuery: "pizza restaurants", City: "Ames"},
		{Name: "Hy-Vee", City: "Ankeny"},
		{Name: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same place ID updates in place; same name and city without a place ID
	// is the same business.
	n, err = st.UpsertBusinesses(ctx, []reference.Business{
		{Name: "Pizza Ranch Ames", PlaceID: "p1", CategoryQuery: "pizza restaurants", City: "Ames"},
		{Name: "Hy-Vee", City: " ankeny", Category: "grocery"},
		{Name: "Casey's", City: "Ames"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	businesses, err := st.Businesses(ctx)
	require.NoError(t, err)
	require.Len(t, businesses, 3)
	assert.Equal(t, "Pizza Ranch Ames", businesses[0].Name)
	assert.Equal(t, "Hy-Vee", businesses[1].Name)
	assert.Equal(t, "grocery", businesses[1].Category)
	assert.Equal(t, "Casey's", businesses[2].Name)
}

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, st.SaveRun(ctx, RunSummary{
			ID:        id,
			Category:  "best pizza",
			Rows:      10,
			Votes:     9,
			Counted:   8 - i,
			Flagged:   1 + i,
			Summary:   []tally.Entry{{Rank: 1, Name: "Joe's Pizza", Votes: 8 - i}},
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := st.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID)
	assert.Equal(t, "run-2", runs[1].ID)
	assert.Equal(t, 6, runs[0].Counted)
	assert.Equal(t, []tally.Entry{{Rank: 1, Name: "Joe's Pizza", Votes: 6}}, runs[0].Summary)
	assert.True(t, base.Add(2*time.Hour).Equal(runs[0].CreatedAt))
}

func TestSQLite_SaveRun_Duplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run := RunSummary{ID: "run-1", Category: "x", CreatedAt: time.Now()}

	require.NoError(t, st.SaveRun(ctx, run))
	assert.Error(t, st.SaveRun(ctx, run))
}

func TestSQLite_SatisfiesReferenceSource(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceAnchors(ctx, []canon.AnchorRule{{Fragment: "joes", Canonical: "Joe's Pizza"}}))
	_, err := st.UpsertBusinesses(ctx, []reference.Business{{Name: "Pizza Ranch", Category: "best pizza"}})
	require.NoError(t, err)

	refs := reference.Load(ctx, st)
	assert.Len(t, refs.Anchors, 1)
	require.Len(t, refs.Master, 1)
	assert.Equal(t, "best pizza", refs.Master[0].Category)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, Config{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = Open(ctx, Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestBusinessKey(t *testing.T) {
	assert.Equal(t, "place:abc", businessKey(reference.Business{Name: "X", PlaceID: "abc"}))
	assert.Equal(t, "name:joes pizza|ames", businessKey(reference.Business{Name: "Joe's Pizza", City: " Ames "}))
}

func TestSummaryFromResult(t *testing.T) {
	res := &analysis.Result{
		RunID:   "run-9",
		Flags:   fraud.Flags{1: "a", 4: "b"},
		Tally:   &tally.Result{Counted: 7},
		Summary: []tally.Entry{{Rank: 1, Name: "A", Votes: 7}},
	}
	sum := SummaryFromResult(res)
	assert.Equal(t, "run-9", sum.ID)
	assert.Equal(t, 2, sum.Flagged)
	assert.Equal(t, 7, sum.Counted)
}
