package canon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestBuilder_ScenarioA_PrefixGrouping(t *testing.T) {
	b := NewBuilder(nil, nil, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), []string{"Joe's Pizza", "Joes Pizza"}, "best pizza")
	require.NoError(t, err)

	assert.Equal(t, "Joe's Pizza", res.Map["Joe's Pizza"])
	assert.Equal(t, "Joe's Pizza", res.Map["Joes Pizza"])
	assert.Equal(t, SourceNew, res.Resolutions[0].Source)
	assert.Equal(t, SourcePrefix, res.Resolutions[1].Source)
	assert.Equal(t, "joes pizza", res.Resolutions[1].Normalized)
}

func TestBuilder_ScenarioB_AnchorBypassesDirectory(t *testing.T) {
	anchors := []AnchorRule{{Fragment: "starbucks", Canonical: "Starbucks Coffee"}}
	master := []MasterEntry{NewMasterEntry("Starbucks on Main St", "")}
	b := NewBuilder(anchors, master, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), []string{"Starbucks on Main St"}, "")
	require.NoError(t, err)

	assert.Equal(t, "Starbucks Coffee", res.Map["Starbucks on Main St"])
	assert.Equal(t, SourceAnchor, res.Resolutions[0].Source)
}

func TestBuilder_DirectoryMatch(t *testing.T) {
	master := []MasterEntry{NewMasterEntry("Acme Bakery", "bakery")}
	b := NewBuilder(nil, master, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), []string{"acme bakery", "Bakery, Acme"}, "")
	require.NoError(t, err)

	assert.Equal(t, "Acme Bakery", res.Map["acme bakery"])
	assert.Equal(t, "Acme Bakery", res.Map["Bakery, Acme"])
	assert.Equal(t, SourceMaster, res.Resolutions[0].Source)
}

func TestBuilder_PrefixGroupsOntoDirectoryCanonical(t *testing.T) {
	master := []MasterEntry{NewMasterEntry("Zombie Burger + Drink Lab", "")}
	b := NewBuilder(nil, master, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), []string{"Zombie Burger Drink Lab", "zombie"}, "")
	require.NoError(t, err)

	assert.Equal(t, "Zombie Burger + Drink Lab", res.Map["zombie"])
	assert.Equal(t, SourcePrefix, res.Resolutions[1].Source)
}

func TestBuilder_DedupeMergesAssignedCanonicals(t *testing.T) {
	// Different prefixes keep these apart until deduplication.
	b := NewBuilder(nil, nil, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), []string{"The Acme Bakery", "Acme Bakery The"}, "")
	require.NoError(t, err)

	assert.Equal(t, "The Acme Bakery", res.Map["Acme Bakery The"])
	assert.Equal(t, SourceNew, res.Resolutions[1].Source)
	assert.Equal(t, "Acme Bakery The", res.Resolutions[1].Assigned)
	require.Len(t, res.Buckets, 1)
}

func TestBuilder_EveryNameMappedOnce(t *testing.T) {
	names := []string{"A1", "Acme", "A1", "Zed's", "zeds", "Acme"}
	b := NewBuilder(nil, nil, DefaultBuilderConfig())

	res, err := b.Build(context.Background(), names, "")
	require.NoError(t, err)

	assert.Len(t, res.Map, 4)
	assert.Len(t, res.Resolutions, 4)
	for _, n := range names {
		_, ok := res.Map[n]
		assert.True(t, ok, "missing %q", n)
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	names := []string{"Joe's Pizza", "Joes Pizzeria", "Acme Bakery", "Acme Bake Shop", "acme", "Pizza Joe's"}
	master := []MasterEntry{NewMasterEntry("Acme Bakery", "")}

	var first *BuildResult
	for i := 0; i < 5; i++ {
		cfg := DefaultBuilderConfig()
		cfg.Workers = i + 1
		res, err := NewBuilder(nil, master, cfg).Build(context.Background(), names, "")
		require.NoError(t, err)
		if first == nil {
			first = res
			continue
		}
		assert.Equal(t, first.Map, res.Map)
		assert.Equal(t, first.Buckets, res.Buckets)
	}
}

func TestBuilder_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(nil, nil, DefaultBuilderConfig()).Build(ctx, []string{"a", "b"}, "")
	assert.Error(t, err)
}

func TestCanonicalMap_Lookup(t *testing.T) {
	m := CanonicalMap{"joes": "Joe's Pizza"}
	assert.Equal(t, "Joe's Pizza", m.Lookup("joes"))
	assert.Equal(t, "unknown", m.Lookup("unknown"))
}
