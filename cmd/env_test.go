package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tre1322/best-of-analyzer/internal/canon"
	"github.com/tre1322/best-of-analyzer/internal/config"
	"github.com/tre1322/best-of-analyzer/internal/reference"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Columns:   config.ColumnsConfig{Address: "ip address", Timestamp: "start date"},
		Reference: config.ReferenceConfig{Source: "file", AnchorsPath: filepath.Join(dir, "anchors.csv"), MasterPath: filepath.Join(dir, "business_master.csv")},
		Matching:  config.MatchingConfig{AnchorThreshold: 80, MasterThreshold: 85, DedupeThreshold: 90, PrefixLength: 4, Workers: 2},
		Rules:     config.RulesConfig{MinParticipation: 2, BurstWindowMinutes: 10, BurstThreshold: 8, StrictAddress: true},
		Report:    config.ReportConfig{TopN: 3},
		Store:     config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "best-of.db")},
		Server:    config.ServerConfig{Port: 8080, MaxUploadMB: 32},
		Log:       config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestAnalysisOptions(t *testing.T) {
	c := testConfig(t)
	c.Rules.BurstWindowMinutes = 15
	c.Rules.StrictAddress = false

	opts := analysisOptions(c)
	assert.Equal(t, "ip address", opts.Columns.Address)
	assert.Equal(t, "start date", opts.Columns.Timestamp)
	assert.False(t, opts.Ballot.StrictAddress)
	assert.InDelta(t, 85, opts.Matching.MasterThreshold, 0.001)
	assert.Equal(t, 4, opts.Matching.PrefixLength)
	assert.Equal(t, 15*time.Minute, opts.Rules.BurstWindow)
	assert.Equal(t, 8, opts.Rules.BurstThreshold)
	assert.Equal(t, 3, opts.TopN)
}

func TestInitAnalysis_FileSourceWithoutStore(t *testing.T) {
	c := testConfig(t)
	require.NoError(t, os.WriteFile(c.Reference.AnchorsPath, []byte("anchor,canonical\njoes,Joe's Pizza\n"), 0644))

	e, err := initAnalysis(context.Background(), c)
	require.NoError(t, err)
	defer e.Close()

	assert.NotNil(t, e.Analyzer)
	assert.Nil(t, e.Store)
	assert.Nil(t, e.runRecorder(c))
}

func TestInitAnalysis_StoreSource(t *testing.T) {
	c := testConfig(t)
	c.Reference.Source = "store"
	c.Store.RecordRuns = true
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	require.NoError(t, st.ReplaceAnchors(ctx, []canon.AnchorRule{{Fragment: "joes", Canonical: "Joe's Pizza"}}))
	_, err = st.UpsertBusinesses(ctx, []reference.Business{{Name: "Pizza Palace", Category: "best pizza"}})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	e, err := initAnalysis(ctx, c)
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Store)
	assert.NotNil(t, e.runRecorder(c))

	path := writeVotes(t, "ip address,best pizza\n10.0.0.1,Joes Pizza\n10.0.0.2,pizza palace\n")
	res, err := runAnalyze(ctx, e.Analyzer, path, "best pizza")
	require.NoError(t, err)
	assert.Equal(t, "Joe's Pizza", res.Canonical.Map["Joes Pizza"])
	assert.Equal(t, "Pizza Palace", res.Canonical.Map["pizza palace"])
}
