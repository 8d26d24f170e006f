package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/toothbrush/tml-sync/platform"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

// ConflictPolicy decides what happens when an object being imported
// already has a mapping entry in the target org.
type ConflictPolicy int

const (
	// PolicyUpdateExisting is the default: re-running an import updates
	// rather than duplicates, which is the whole point of keeping the
	// mapping store around.
	PolicyUpdateExisting ConflictPolicy = iota
	PolicyCreateNew
	PolicySkipIfExists
	PolicyFailIfExists
)

func (p ConflictPolicy) String() string {
	switch p {
	case PolicyUpdateExisting:
		return "update-existing"
	case PolicyCreateNew:
		return "create-new"
	case PolicySkipIfExists:
		return "skip-if-exists"
	case PolicyFailIfExists:
		return "fail-if-exists"
	default:
		return "unknown"
	}
}

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	for _, p := range []ConflictPolicy{PolicyUpdateExisting, PolicyCreateNew, PolicySkipIfExists, PolicyFailIfExists} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("migrate: unknown conflict policy: %s", s)
}

// OutcomeKind is the terminal state of one object in an import run.
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota
	OutcomeUpdated
	OutcomeSkipped
	OutcomeSkippedBlocked
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSkippedBlocked:
		return "skipped (blocked dependency)"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImportResult is one object's outcome, with enough identifying detail
// to locate and retry just that object.
type ImportResult struct {
	GUID GUID
	Type string
	Name string

	Outcome    OutcomeKind
	TargetGUID GUID

	// Reason qualifies a failure: conflict, unresolved-reference,
	// timeout, permission-denied, validation, not-found, transient.
	Reason string
	Err    error

	// BlockedOn names the failed dependency for skipped-blocked.
	BlockedOn GUID
}

// ImportReport aggregates an import run.
type ImportReport struct {
	Results []ImportResult // manifest order
	Counts  map[OutcomeKind]int

	// Post-import tag/share problems.  Best-effort: these never change
	// an object's outcome, but the user should hear about them.
	PostImportErrors []error
}

// FailureCount is the number of objects that reached a failed outcome.
func (r *ImportReport) FailureCount() int {
	return r.Counts[OutcomeFailed]
}

// Importer replays an export manifest into a target org, strictly in
// dependency order.  Objects within one rank run concurrently; a rank
// only starts once the previous one has fully settled, because its
// rewrites may depend on mapping entries the previous rank created.
type Importer struct {
	StorePath string
	Workers   int
	API       ContentAPI
	Store     *MappingStore

	SourceOrg string // defaults to the manifest's source org
	TargetOrg string
	Policy    ConflictPolicy

	// Post-import actions, applied best-effort to created/updated
	// objects.
	Tags            []string
	SharePrincipals []string

	// CallTimeout bounds each remote call; expiry is a failed(timeout)
	// outcome for that object, never a run abort.
	CallTimeout time.Duration

	Logger *log.Logger

	// Progress receives the progress bar; nil suppresses it.
	Progress io.Writer
}

func (i *Importer) callTimeout() time.Duration {
	if i.CallTimeout > 0 {
		return i.CallTimeout
	}
	return 30 * time.Second
}

// ImportManifest processes every manifest object to a terminal outcome
// and persists mapping entries as it goes.  A cancelled context stops
// the run cleanly between ranks: the in-flight rank settles, later
// ranks never start, and the error is returned alongside the partial
// report.
func (i *Importer) ImportManifest(ctx context.Context, manifest Manifest) (*ImportReport, error) {
	if i.Logger == nil {
		i.Logger = log.New(io.Discard, "", 0)
	}

	sourceOrg := i.SourceOrg
	if sourceOrg == "" {
		sourceOrg = manifest.SourceOrg
	}
	if sourceOrg == "" {
		return nil, fmt.Errorf("migrate: no source org: manifest doesn't record one and none was given")
	}
	if i.TargetOrg == "" {
		return nil, fmt.Errorf("migrate: no target org given")
	}

	workers := i.Workers
	if workers < 1 {
		workers = 1
	}

	// Load every edoc up front; a half-missing store is a setup
	// problem, not a per-object condition.
	edocs := map[GUID]string{}
	for _, entry := range manifest.Objects {
		edoc, err := ReadExportedEDoc(i.StorePath, entry.Path)
		if err != nil {
			return nil, err
		}
		edocs[entry.GUID] = edoc
	}

	ranks := manifestRanks(manifest)

	progress := i.Progress
	if progress == nil {
		progress = io.Discard
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(progress))
	bar := p.AddBar(int64(len(manifest.Objects)),
		mpb.PrependDecorators(
			decor.Name("import:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.NewPercentage("%d"),
		),
	)

	var mu sync.Mutex
	results := map[GUID]*ImportResult{}

	var runErr error
	for rankIndex, rank := range ranks {
		if err := ctx.Err(); err != nil {
			i.Logger.Printf("Cancelled before rank %d; leaving remaining objects unattempted.\n", rankIndex)
			runErr = err
			break
		}

		// Errors never leave the worker: every failure is an outcome,
		// so siblings keep going.
		var grp errgroup.Group
		grp.SetLimit(workers)

		for _, entry := range rank {
			entry := entry
			grp.Go(func() error {
				result := i.processObject(ctx, entry, edocs[entry.GUID], sourceOrg, results, &mu)

				mu.Lock()
				results[entry.GUID] = result
				mu.Unlock()

				bar.Increment()
				return nil
			})
		}

		// workers never return errors; failures are outcomes.
		_ = grp.Wait()
	}

	p.Wait()

	report := &ImportReport{Counts: map[OutcomeKind]int{}}
	for _, entry := range manifest.Objects {
		result, attempted := results[entry.GUID]
		if !attempted {
			// cancelled before this object's rank started; it was
			// simply never attempted, which is safe.
			continue
		}
		report.Results = append(report.Results, *result)
		report.Counts[result.Outcome]++
	}

	if runErr == nil {
		i.applyPostImportActions(ctx, report)
	}

	i.Logger.Printf("Import summary: %d created, %d updated, %d skipped, %d blocked, %d failed.\n",
		report.Counts[OutcomeCreated],
		report.Counts[OutcomeUpdated],
		report.Counts[OutcomeSkipped],
		report.Counts[OutcomeSkippedBlocked],
		report.Counts[OutcomeFailed])

	return report, runErr
}

// manifestRanks cuts the manifest's topological order into ranks: an
// object's rank is one past its deepest in-manifest reference.
func manifestRanks(manifest Manifest) [][]ManifestEntry {
	rankOf := map[GUID]int{}
	ranks := [][]ManifestEntry{}

	for _, entry := range manifest.Objects {
		rank := 0
		for _, ref := range entry.ReferencedGUIDs {
			if refRank, inManifest := rankOf[ref]; inManifest && refRank+1 > rank {
				rank = refRank + 1
			}
		}
		rankOf[entry.GUID] = rank

		for len(ranks) <= rank {
			ranks = append(ranks, []ManifestEntry{})
		}
		ranks[rank] = append(ranks[rank], entry)
	}

	return ranks
}

// processObject drives one object through the conflict-policy state
// machine to a terminal outcome.  results holds settled outcomes from
// earlier ranks only, so reading it under mu is enough.
func (i *Importer) processObject(ctx context.Context, entry ManifestEntry, edoc string, sourceOrg string, results map[GUID]*ImportResult, mu *sync.Mutex) *ImportResult {
	result := &ImportResult{
		GUID: entry.GUID,
		Type: entry.Type,
		Name: entry.Name,
	}

	// A failed dependency blocks this object outright; importing it
	// anyway would write a dangling reference into the target org.
	mu.Lock()
	for _, ref := range entry.ReferencedGUIDs {
		dep, inManifest := results[ref]
		if !inManifest {
			continue
		}
		if dep.Outcome == OutcomeFailed || dep.Outcome == OutcomeSkippedBlocked {
			result.Outcome = OutcomeSkippedBlocked
			result.BlockedOn = ref
			mu.Unlock()
			return result
		}
	}
	mu.Unlock()

	existing, exists := i.Store.Lookup(sourceOrg, entry.GUID, i.TargetOrg)

	switch {
	case exists && i.Policy == PolicySkipIfExists:
		// Still a terminal success: dependents resolve through the
		// existing entry.
		result.Outcome = OutcomeSkipped
		result.TargetGUID = existing.TargetGUID
		return result

	case exists && i.Policy == PolicyFailIfExists:
		result.Outcome = OutcomeFailed
		result.Reason = "conflict"
		result.Err = fmt.Errorf("migrate: %s already mapped to %s in org %s", entry.GUID, existing.TargetGUID, i.TargetOrg)
		return result

	case exists && i.Policy == PolicyUpdateExisting:
		i.updateObject(ctx, entry, edoc, sourceOrg, existing, result)
		return result

	default:
		// No entry yet, or create-new: either way the target gets a
		// fresh object.
		i.createObject(ctx, entry, edoc, sourceOrg, result)
		return result
	}
}

func (i *Importer) createObject(ctx context.Context, entry ManifestEntry, edoc string, sourceOrg string, result *ImportResult) {
	rewritten, err := RewriteReferences(entry.GUID, edoc, entry.ReferencedGUIDs, i.Store, sourceOrg, i.TargetOrg)
	if err != nil {
		i.failWith(result, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, i.callTimeout())
	defer cancel()

	created, err := i.API.CreateObject(callCtx, platform.CreateObjectRequest{
		EDoc: rewritten,
		Type: entry.Type,
	})
	if err != nil {
		i.failWith(result, err)
		return
	}

	if err := i.upsertMapping(entry, sourceOrg, GUID(created.ID)); err != nil {
		i.failWith(result, err)
		return
	}

	result.Outcome = OutcomeCreated
	result.TargetGUID = GUID(created.ID)
}

func (i *Importer) updateObject(ctx context.Context, entry ManifestEntry, edoc string, sourceOrg string, existing MappingEntry, result *ImportResult) {
	rewritten, err := RewriteReferences(entry.GUID, edoc, entry.ReferencedGUIDs, i.Store, sourceOrg, i.TargetOrg)
	if err != nil {
		i.failWith(result, err)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, i.callTimeout())
	defer cancel()

	if err := i.API.UpdateObject(callCtx, string(existing.TargetGUID), platform.UpdateObjectRequest{EDoc: rewritten}); err != nil {
		i.failWith(result, err)
		return
	}

	if err := i.upsertMapping(entry, sourceOrg, existing.TargetGUID); err != nil {
		i.failWith(result, err)
		return
	}

	result.Outcome = OutcomeUpdated
	result.TargetGUID = existing.TargetGUID
}

func (i *Importer) upsertMapping(entry ManifestEntry, sourceOrg string, targetGUID GUID) error {
	return i.Store.Upsert(MappingEntry{
		SourceOrg:  sourceOrg,
		SourceGUID: entry.GUID,
		TargetOrg:  i.TargetOrg,
		TargetGUID: targetGUID,
		Type:       entry.Type,
		SyncedHash: entry.Hash,
		SyncedAt:   time.Now().UTC(),
	})
}

// failWith classifies err into the failure taxonomy.
func (i *Importer) failWith(result *ImportResult, err error) {
	result.Outcome = OutcomeFailed
	result.Err = err

	var unresolved *UnresolvedReferenceError
	switch {
	case errors.As(err, &unresolved):
		result.Reason = "unresolved-reference"
	default:
		if kind, ok := platform.KindOf(err); ok {
			result.Reason = kind.String()
		} else {
			result.Reason = "remote"
		}
	}
}

// applyPostImportActions tags and shares everything that was created or
// updated.  Failures here are reported separately and never revert the
// import outcomes.
func (i *Importer) applyPostImportActions(ctx context.Context, report *ImportReport) {
	targets := []string{}
	for _, result := range report.Results {
		if result.Outcome == OutcomeCreated || result.Outcome == OutcomeUpdated {
			targets = append(targets, string(result.TargetGUID))
		}
	}
	if len(targets) == 0 {
		return
	}

	if len(i.Tags) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, i.callTimeout())
		if err := i.API.AssignTags(callCtx, platform.AssignTagsRequest{GUIDs: targets, TagNames: i.Tags}); err != nil {
			report.PostImportErrors = append(report.PostImportErrors, fmt.Errorf("migrate: couldn't apply tags %v: %w", i.Tags, err))
		}
		cancel()
	}

	if len(i.SharePrincipals) > 0 {
		callCtx, cancel := context.WithTimeout(ctx, i.callTimeout())
		if err := i.API.Share(callCtx, platform.ShareRequest{GUIDs: targets, Principals: i.SharePrincipals}); err != nil {
			report.PostImportErrors = append(report.PostImportErrors, fmt.Errorf("migrate: couldn't share with %v: %w", i.SharePrincipals, err))
		}
		cancel()
	}
}
