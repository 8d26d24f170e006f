package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toothbrush/tml-sync/platform"
)

// exportScenario exports {T1, W1 -> T1, A1 -> W1} from "prod" into a
// temp store, and returns everything an import test needs.
func exportScenario(t *testing.T) (string, *fakeAPI, Manifest) {
	t.Helper()

	api := scenarioAPI()
	storePath := t.TempDir()
	report, err := testExporter(api, storePath).ExportObjects(context.Background(), []GUID{"a1-guid"})
	require.NoError(t, err)
	require.Equal(t, 0, report.FailureCount())

	return storePath, api, report.Manifest
}

func testImporter(t *testing.T, storePath string, api ContentAPI, policy ConflictPolicy) *Importer {
	t.Helper()

	store, err := LoadMappingStore(MappingFilePath(storePath, "prod", "dev"))
	require.NoError(t, err)

	return &Importer{
		StorePath: storePath,
		Workers:   1,
		API:       api,
		Store:     store,
		TargetOrg: "dev",
		Policy:    policy,
		Logger:    quietLogger(),
	}
}

func outcomes(report *ImportReport) map[GUID]OutcomeKind {
	out := map[GUID]OutcomeKind{}
	for _, result := range report.Results {
		out[result.GUID] = result.Outcome
	}
	return out
}

func TestImportCreatesThenUpdates(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	first, err := testImporter(t, storePath, api, PolicyCreateNew).ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	require.Equal(t, 3, first.Counts[OutcomeCreated])
	require.Equal(t, 0, first.FailureCount())

	// W1's created representation references T1's new target GUID, not
	// its source GUID.
	store, err := LoadMappingStore(MappingFilePath(storePath, "prod", "dev"))
	require.NoError(t, err)
	require.Equal(t, 3, store.Len())

	t1, ok := store.Lookup("prod", "t1-guid", "dev")
	require.True(t, ok)
	w1, ok := store.Lookup("prod", "w1-guid", "dev")
	require.True(t, ok)

	created := api.created[string(w1.TargetGUID)]
	assert.Contains(t, created.EDoc, string(t1.TargetGUID))
	assert.NotContains(t, created.EDoc, "t1-guid")
	assert.Equal(t, "WORKSHEET", created.Type)

	// replaying with update-existing updates in place: same target
	// GUIDs, no new mapping entries.
	second, err := testImporter(t, storePath, api, PolicyUpdateExisting).ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, 3, second.Counts[OutcomeUpdated])
	assert.Equal(t, 0, second.Counts[OutcomeCreated])

	reloaded, err := LoadMappingStore(MappingFilePath(storePath, "prod", "dev"))
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())

	w1Again, ok := reloaded.Lookup("prod", "w1-guid", "dev")
	require.True(t, ok)
	assert.Equal(t, w1.TargetGUID, w1Again.TargetGUID)
	assert.Contains(t, api.updated[string(w1.TargetGUID)], string(t1.TargetGUID))
}

func TestImportBlockedPropagation(t *testing.T) {
	storePath, api, manifest := exportScenario(t)
	api.createErr["t1-guid"] = &platform.RemoteError{Kind: platform.ValidationError, Status: "400 Bad Request"}

	report, err := testImporter(t, storePath, api, PolicyCreateNew).ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	got := outcomes(report)
	assert.Equal(t, OutcomeFailed, got["t1-guid"])
	assert.Equal(t, OutcomeSkippedBlocked, got["w1-guid"])
	assert.Equal(t, OutcomeSkippedBlocked, got["a1-guid"])

	for _, result := range report.Results {
		if result.GUID == "t1-guid" {
			assert.Equal(t, "validation", result.Reason)
		}
		if result.GUID == "w1-guid" {
			assert.Equal(t, GUID("t1-guid"), result.BlockedOn)
		}
	}

	// nothing was mapped: the failed object's entry is never partially
	// written, and blocked objects were never attempted.
	store, err := LoadMappingStore(MappingFilePath(storePath, "prod", "dev"))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestImportFailIfExistsConflictsOnMappedObject(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	// a prior run already mapped the leaf answer.
	seed := testImporter(t, storePath, api, PolicyCreateNew)
	require.NoError(t, seed.Store.Upsert(MappingEntry{
		SourceOrg:  "prod",
		SourceGUID: "a1-guid",
		TargetOrg:  "dev",
		TargetGUID: "dev-9999",
		Type:       "ANSWER",
	}))

	importer := testImporter(t, storePath, api, PolicyFailIfExists)
	report, err := importer.ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	got := outcomes(report)
	assert.Equal(t, OutcomeCreated, got["t1-guid"])
	assert.Equal(t, OutcomeCreated, got["w1-guid"])
	assert.Equal(t, OutcomeFailed, got["a1-guid"])
	assert.Equal(t, 1, report.FailureCount())

	for _, result := range report.Results {
		if result.GUID == "a1-guid" {
			assert.Equal(t, "conflict", result.Reason)
		}
	}
}

func TestImportSkipIfExistsStillResolvesDependents(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	// first run maps everything...
	_, err := testImporter(t, storePath, api, PolicyCreateNew).ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	// ...second run skips everything, but dependents still resolve
	// through the existing entries.
	report, err := testImporter(t, storePath, api, PolicySkipIfExists).ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Counts[OutcomeSkipped])
	assert.Equal(t, 0, report.FailureCount())

	for _, result := range report.Results {
		assert.NotEmpty(t, result.TargetGUID)
	}
}

func TestImportAppliesPostImportActions(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	importer := testImporter(t, storePath, api, PolicyCreateNew)
	importer.Tags = []string{"migrated"}
	importer.SharePrincipals = []string{"analysts"}

	report, err := importer.ImportManifest(context.Background(), manifest)
	require.NoError(t, err)
	require.Equal(t, 3, report.Counts[OutcomeCreated])
	assert.Empty(t, report.PostImportErrors)

	require.Len(t, api.taggedWith, 1)
	assert.Equal(t, []string{"migrated"}, api.taggedWith[0].TagNames)
	assert.Len(t, api.taggedWith[0].GUIDs, 3)

	require.Len(t, api.sharedWith, 1)
	assert.Equal(t, []string{"analysts"}, api.sharedWith[0].Principals)
}

func TestImportPostImportFailureDoesNotChangeOutcomes(t *testing.T) {
	storePath, api, manifest := exportScenario(t)
	api.tagErr = &platform.RemoteError{Kind: platform.PermissionDenied, Status: "403 Forbidden"}

	importer := testImporter(t, storePath, api, PolicyCreateNew)
	importer.Tags = []string{"migrated"}

	report, err := importer.ImportManifest(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Counts[OutcomeCreated])
	assert.Equal(t, 0, report.FailureCount())
	require.Len(t, report.PostImportErrors, 1)
}

func TestImportWorksWithoutLogger(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	store, err := LoadMappingStore(MappingFilePath(storePath, "prod", "dev"))
	require.NoError(t, err)

	importer := &Importer{
		StorePath: storePath,
		API:       api,
		Store:     store,
		TargetOrg: "dev",
		Policy:    PolicyCreateNew,
	}

	report, err := importer.ImportManifest(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts[OutcomeCreated])
}

func TestImportCancelledBeforeStartAttemptsNothing(t *testing.T) {
	storePath, api, manifest := exportScenario(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := testImporter(t, storePath, api, PolicyCreateNew).ImportManifest(ctx, manifest)
	require.Error(t, err)
	assert.Empty(t, report.Results)
}
