package migrate

import (
	"errors"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeWith(t *testing.T, entries ...MappingEntry) *MappingStore {
	t.Helper()
	store, err := LoadMappingStore(path.Join(t.TempDir(), "prod-dev.yaml"))
	require.NoError(t, err)
	for _, entry := range entries {
		require.NoError(t, store.Upsert(entry))
	}
	return store
}

func TestRewriteSubstitutesMappedReferences(t *testing.T) {
	store := storeWith(t, testEntry("t1-guid", "dev-0001"))

	edoc := "worksheet:\n  tables:\n  - guid: t1-guid\n"
	rewritten, err := RewriteReferences("w1-guid", edoc, []GUID{"t1-guid"}, store, "prod", "dev")
	require.NoError(t, err)

	assert.Contains(t, rewritten, "dev-0001")
	assert.NotContains(t, rewritten, "t1-guid")
}

func TestRewriteIsDeterministic(t *testing.T) {
	store := storeWith(t,
		testEntry("t1-guid", "dev-0001"),
		testEntry("t2-guid", "dev-0002"))

	edoc := "tables:\n- guid: t2-guid\n- guid: t1-guid\n"
	refs := []GUID{"t2-guid", "t1-guid"}

	first, err := RewriteReferences("w1-guid", edoc, refs, store, "prod", "dev")
	require.NoError(t, err)
	second, err := RewriteReferences("w1-guid", edoc, refs, store, "prod", "dev")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRewriteChainedMappingsDoNotCascade(t *testing.T) {
	// table-aaaa's target GUID is itself a source GUID with a mapping of
	// its own; the first substitution's output must not be rewritten
	// again by the second.
	store := storeWith(t,
		testEntry("table-aaaa", "table-bbbb"),
		testEntry("table-bbbb", "dev-cccc"))

	edoc := "tables:\n- guid: table-aaaa\n- guid: table-bbbb\n"
	rewritten, err := RewriteReferences("w1-guid", edoc, []GUID{"table-aaaa", "table-bbbb"}, store, "prod", "dev")
	require.NoError(t, err)

	assert.Equal(t, "tables:\n- guid: table-bbbb\n- guid: dev-cccc\n", rewritten)
}

func TestRewriteFailsClosedOnUnresolvedReference(t *testing.T) {
	store := storeWith(t, testEntry("t1-guid", "dev-0001"))

	edoc := "tables:\n- guid: t1-guid\n- guid: t9-guid\n"
	_, err := RewriteReferences("w1-guid", edoc, []GUID{"t1-guid", "t9-guid"}, store, "prod", "dev")
	require.Error(t, err)

	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, GUID("w1-guid"), unresolved.GUID)
	assert.Equal(t, []GUID{"t9-guid"}, unresolved.Refs)
}
