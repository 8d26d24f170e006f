package platform

// ObjectHeader is the listing-level description of a content object.
type ObjectHeader struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"metadata_type"`
	AuthorID string `json:"author_id,omitempty"`
	Modified string `json:"modified,omitempty"`
}

// ExportResponse is one object's full exported form: its header, the
// TML edoc text, and every outbound reference the edoc makes.
type ExportResponse struct {
	Header          ObjectHeader `json:"header"`
	EDoc            string       `json:"edoc"`
	ReferencedGUIDs []string     `json:"referenced_guids"`
}

// CreateResponse carries the GUID the service assigned on import.
type CreateResponse struct {
	ID string `json:"id"`
}

// MultiObjectResponse is a page of the listing endpoint.
type MultiObjectResponse struct {
	Results []ObjectHeader `json:"results"`

	Links struct {
		// Contains the relative URL for the next set of results, using
		// a cursor query parameter.  This property will not be present
		// if there is no additional data available.
		Next string `json:"next"`
	} `json:"_links"`
}
