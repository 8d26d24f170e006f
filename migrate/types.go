package migrate

import (
	"context"
	"time"

	"github.com/toothbrush/tml-sync/platform"
)

// GUID is a content object's opaque identifier, unique within an org.
type GUID string

// RelativePath is a path relative to the export store root.
type RelativePath string

// ContentAPI is the slice of the metadata service the engine consumes.
// *platform.API satisfies it; tests substitute fakes.
type ContentAPI interface {
	ExportObject(ctx context.Context, opts platform.ExportObjectQuery) (*platform.ExportResponse, error)
	CreateObject(ctx context.Context, req platform.CreateObjectRequest) (*platform.CreateResponse, error)
	UpdateObject(ctx context.Context, guid string, req platform.UpdateObjectRequest) error
	AssignTags(ctx context.Context, req platform.AssignTagsRequest) error
	Share(ctx context.Context, req platform.ShareRequest) error
}

// ManifestEntry records one exported object: where its edoc lives, what
// it referenced at export time, and the hash of its normalized form.
type ManifestEntry struct {
	GUID            GUID         `yaml:"guid"`
	Type            string       `yaml:"type"`
	Name            string       `yaml:"name"`
	Path            RelativePath `yaml:"path"`
	Hash            string       `yaml:"hash"`
	ReferencedGUIDs []GUID       `yaml:"references,omitempty"`
}

// Manifest is the artefact of one export run.  Objects appear in
// topological order: every reference precedes its referrers, so import
// can replay the list front to back.
type Manifest struct {
	SourceOrg  string          `yaml:"source-org"`
	ExportedAt time.Time       `yaml:"exported-at"`
	Objects    []ManifestEntry `yaml:"objects"`
}

// Contains reports whether the manifest covers the given GUID.
func (m Manifest) Contains(guid GUID) bool {
	for _, entry := range m.Objects {
		if entry.GUID == guid {
			return true
		}
	}
	return false
}
