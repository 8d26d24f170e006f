package platform

// ExportObjectQuery defines the query parameters for
// GET /api/v2/metadata/{guid}/export.
type ExportObjectQuery struct {
	GUID string `url:"-"` // GUID of the object; required

	// Ask the service to include the object's declared outbound
	// references in the response.  We always want these, but the
	// parameter is optional on the wire.
	WithReferences bool `url:"with-references,omitempty"`
}

// GetObjectsQuery defines the query parameters for
// GET /api/v2/metadata, the paged listing endpoint.
type GetObjectsQuery struct {
	// Filter the results to objects based on...
	Type    string   `url:"type,omitempty"`           // their metadata type, e.g. LIVEBOARD
	Pattern string   `url:"name-pattern,omitempty"`   // a name pattern, % as wildcard
	Tags    []string `url:"tag,omitempty,comma"`      // their tags
	GUIDs   []string `url:"id,omitempty,comma"`       // their GUIDs
	Author  string   `url:"author-id,omitempty"`      // their author
	Sort    string   `url:"sort,omitempty"`           // sort order: name, -name, created, -created

	// 'Cursor' is used for pagination; this opaque cursor will be
	// returned in the 'next' URL of the response.  Use it to retrieve
	// the next set of results.
	Cursor string `url:"cursor,omitempty"`
	Limit  int    `url:"limit,omitempty"` // page limit; default 25
}

// CreateObjectRequest is the body for POST /api/v2/metadata/import.
type CreateObjectRequest struct {
	EDoc string `json:"edoc"`
	Type string `json:"metadata_type"`
}

// UpdateObjectRequest is the body for PUT /api/v2/metadata/{guid}.
type UpdateObjectRequest struct {
	EDoc string `json:"edoc"`
}

// AssignTagsRequest is the body for POST /api/v2/metadata/tags.
type AssignTagsRequest struct {
	GUIDs    []string `json:"metadata_ids"`
	TagNames []string `json:"tag_names"`
}

// ShareRequest is the body for POST /api/v2/security/share.
// Principals may name users or groups; the service resolves them.
type ShareRequest struct {
	GUIDs      []string `json:"metadata_ids"`
	Principals []string `json:"principals"`
}
