package migrate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/toothbrush/tml-sync/platform"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Exporter walks a set of root objects' dependency closure and writes
// every member to the local store, dependencies first.  Export never
// touches the mapping store: it only records facts about the source
// side.
type Exporter struct {
	StorePath string
	Workers   int
	Strict    bool
	SourceOrg string
	API       ContentAPI

	Logger *log.Logger

	// Progress receives the progress bar; nil suppresses it.
	Progress io.Writer
}

// ExportReport summarises one export run.  Partial success is a valid
// outcome: unreachable objects and their excluded dependents are
// reported here, everything else made the manifest.
type ExportReport struct {
	Manifest Manifest

	Unreachable map[GUID]error
	Excluded    map[GUID]GUID
}

// FailureCount is the number of requested-or-discovered objects that
// didn't make the manifest.
func (r *ExportReport) FailureCount() int {
	return len(r.Unreachable) + len(r.Excluded)
}

// ExportObjects resolves, fetches, normalizes and writes the closure of
// roots, then records the manifest.  Under Strict, any unreachable
// dependency (and of course a cycle) aborts instead.
func (e *Exporter) ExportObjects(ctx context.Context, roots []GUID) (*ExportReport, error) {
	if e.Logger == nil {
		e.Logger = log.New(io.Discard, "", 0)
	}

	stat, err := os.Stat(e.StorePath)
	if err != nil {
		return nil, fmt.Errorf("migrate: cannot stat '%s': %w", e.StorePath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("migrate: local store path not a directory: '%s'", e.StorePath)
	}

	resolver := &Resolver{
		API:     e.API,
		Workers: e.Workers,
		Strict:  e.Strict,
		Logger:  e.Logger,
	}

	e.Logger.Printf("Resolving dependency graph from %d root(s)...\n", len(roots))
	resolution, err := resolver.Resolve(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("migrate: resolution failed: %w", err)
	}
	e.Logger.Printf("...resolved %d object(s) in %d rank(s).\n", len(resolution.Order), len(resolution.Ranks))

	progress := e.Progress
	if progress == nil {
		progress = io.Discard
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(progress))
	bar := p.AddBar(int64(len(resolution.Order)),
		mpb.PrependDecorators(
			decor.Name("export:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.NewPercentage("%d"),
		),
	)

	taken := map[RelativePath]bool{}
	entries := []ManifestEntry{}

	for _, guid := range resolution.Order {
		exported := resolution.Objects[guid]

		objectType, err := platform.ParseObjectType(exported.Header.Type)
		if err != nil {
			return nil, fmt.Errorf("migrate: object %s: %w", guid, err)
		}

		normalized, err := NormalizeEDoc(exported.EDoc)
		if err != nil {
			return nil, fmt.Errorf("migrate: object %s: %w", guid, err)
		}

		relativePath, err := ObjectPath(objectType, exported.Header.Name, guid, taken)
		if err != nil {
			return nil, fmt.Errorf("migrate: object %s: %w", guid, err)
		}
		taken[relativePath] = true

		if err := e.writeEDoc(relativePath, normalized); err != nil {
			return nil, fmt.Errorf("migrate: object %s: %w", guid, err)
		}

		refs := make([]GUID, len(exported.ReferencedGUIDs))
		for i, ref := range exported.ReferencedGUIDs {
			refs[i] = GUID(ref)
		}

		entries = append(entries, ManifestEntry{
			GUID:            guid,
			Type:            exported.Header.Type,
			Name:            exported.Header.Name,
			Path:            relativePath,
			Hash:            HashEDoc(normalized),
			ReferencedGUIDs: refs,
		})
		bar.Increment()
	}

	p.Wait()

	manifest := Manifest{
		SourceOrg:  e.SourceOrg,
		ExportedAt: time.Now().UTC(),
		Objects:    entries,
	}

	if err := WriteManifest(e.StorePath, manifest); err != nil {
		return nil, fmt.Errorf("migrate: couldn't record manifest: %w", err)
	}

	for guid, ferr := range resolution.Unreachable {
		e.Logger.Printf("Unreachable: %s: %v\n", guid, ferr)
	}
	for guid, blockedOn := range resolution.Excluded {
		e.Logger.Printf("Excluded (blocked dependency): %s (needs %s)\n", guid, blockedOn)
	}
	e.Logger.Printf("Exported %d object(s), %d failure(s).\n", len(entries), len(resolution.Unreachable)+len(resolution.Excluded))

	return &ExportReport{
		Manifest:    manifest,
		Unreachable: resolution.Unreachable,
		Excluded:    resolution.Excluded,
	}, nil
}

func (e *Exporter) writeEDoc(relativePath RelativePath, contents string) error {
	abs := path.Join(e.StorePath, string(relativePath))
	directory := path.Dir(abs)

	// there's probably a nicer way to express 0750 but meh
	if err := os.MkdirAll(directory, 0750); err != nil {
		return fmt.Errorf("migrate: couldn't create directory %s: %w", directory, err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("migrate: couldn't create file %s: %w", abs, err)
	}

	defer f.Close()
	if _, err := f.WriteString(contents); err != nil {
		return fmt.Errorf("migrate: couldn't write to file %s: %w", abs, err)
	}

	return nil
}
