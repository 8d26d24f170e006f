package platform

import (
	"fmt"
	"net/url"

	"github.com/google/go-querystring/query"
)

// exportObjectEndpoint returns the API endpoint to export one object's
// TML representation, with outbound references.
func (a *API) exportObjectEndpoint(opts ExportObjectQuery) (*url.URL, error) {
	if opts.GUID == "" {
		return nil, fmt.Errorf("platform: please provide GUID to export object")
	}

	ep, err := a.resolveEndpoint(fmt.Sprintf("/api/v2/metadata/%s/export", opts.GUID))
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// getObjectsEndpoint returns the API endpoint to list objects.
func (a *API) getObjectsEndpoint(opts GetObjectsQuery) (*url.URL, error) {
	ep, err := a.resolveEndpoint("/api/v2/metadata")
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't resolve endpoint: %w", err)
	}

	v, err := query.Values(opts)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't encode query params: %w", err)
	}
	ep.RawQuery = v.Encode()

	return ep, nil
}

// createObjectEndpoint returns the API endpoint to import a new object.
func (a *API) createObjectEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("/api/v2/metadata/import")
}

// updateObjectEndpoint returns the API endpoint to update one object in
// place.
func (a *API) updateObjectEndpoint(guid string) (*url.URL, error) {
	if guid == "" {
		return nil, fmt.Errorf("platform: please provide GUID to update object")
	}
	return a.resolveEndpoint(fmt.Sprintf("/api/v2/metadata/%s", guid))
}

// assignTagsEndpoint returns the API endpoint to attach tags to a batch
// of objects.
func (a *API) assignTagsEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("/api/v2/metadata/tags")
}

// shareEndpoint returns the API endpoint to share objects with users or
// groups.
func (a *API) shareEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("/api/v2/security/share")
}

// currentUserEndpoint returns the API endpoint to query the session
// user.
func (a *API) currentUserEndpoint() (*url.URL, error) {
	return a.resolveEndpoint("/api/v2/auth/session/user")
}

// Do a bit of error checking on endpoint format, and return it relative to the base URI.
func (a *API) resolveEndpoint(endpoint string) (*url.URL, error) {
	baseUri := a.BaseURI

	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("platform: failed to parse endpoint ref: %w", err)
	}

	return baseUri.ResolveReference(ref), nil
}
