package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

func (api *API) ExportObject(ctx context.Context, opts ExportObjectQuery) (*ExportResponse, error) {
	opts.WithReferences = true

	ep, err := api.exportObjectEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't get export endpoint: %w", err)
	}

	body, err := api.request(ctx, http.MethodGet, ep, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	var exported ExportResponse

	if err := json.Unmarshal(body, &exported); err != nil {
		return nil, fmt.Errorf("platform: couldn't parse json response: %w", err)
	}

	return &exported, nil
}

func (api *API) GetObjects(ctx context.Context, opts GetObjectsQuery) (*MultiObjectResponse, error) {
	ep, err := api.getObjectsEndpoint(opts)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't get listing endpoint: %w", err)
	}

	body, err := api.request(ctx, http.MethodGet, ep, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	var objectList MultiObjectResponse

	if err := json.Unmarshal(body, &objectList); err != nil {
		return nil, fmt.Errorf("platform: couldn't parse json response: %w", err)
	}

	return &objectList, nil
}

func (api *API) CreateObject(ctx context.Context, req CreateObjectRequest) (*CreateResponse, error) {
	ep, err := api.createObjectEndpoint()
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't get import endpoint: %w", err)
	}

	body, err := api.request(ctx, http.MethodPost, ep, req)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	var created CreateResponse

	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("platform: couldn't parse json response: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("platform: import response did not carry an id")
	}

	return &created, nil
}

func (api *API) UpdateObject(ctx context.Context, guid string, req UpdateObjectRequest) error {
	ep, err := api.updateObjectEndpoint(guid)
	if err != nil {
		return fmt.Errorf("platform: couldn't get update endpoint: %w", err)
	}

	if _, err := api.request(ctx, http.MethodPut, ep, req); err != nil {
		return fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	return nil
}

func (api *API) AssignTags(ctx context.Context, req AssignTagsRequest) error {
	ep, err := api.assignTagsEndpoint()
	if err != nil {
		return fmt.Errorf("platform: couldn't get tags endpoint: %w", err)
	}

	if _, err := api.request(ctx, http.MethodPost, ep, req); err != nil {
		return fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	return nil
}

func (api *API) Share(ctx context.Context, req ShareRequest) error {
	ep, err := api.shareEndpoint()
	if err != nil {
		return fmt.Errorf("platform: couldn't get share endpoint: %w", err)
	}

	if _, err := api.request(ctx, http.MethodPost, ep, req); err != nil {
		return fmt.Errorf("platform: couldn't perform request: %w", err)
	}

	return nil
}

// CurrentUser returns current user information
func (api *API) CurrentUser(ctx context.Context) (*User, error) {
	ep, err := api.currentUserEndpoint()
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't get current user endpoint: %w", err)
	}

	body, err := api.request(ctx, http.MethodGet, ep, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't perform http request: %w", err)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("platform: couldn't parse json response: %w", err)
	}

	return &user, nil
}

// request implements the basic request function.  The payload, if any,
// is JSON-encoded.  Non-success statuses are classified into a
// RemoteError so callers can make per-object policy decisions.
func (api *API) request(ctx context.Context, method string, url *url.URL, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("platform: couldn't encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't instantiate http request: %w", err)
	}

	req.Header.Add("Accept", "application/json, */*")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if api.Org != "" {
		req.Header.Set("X-Requested-Org", api.Org)
	}

	// if user & token are not set, do not add authorization header
	if api.username != "" && api.token != "" {
		req.SetBasicAuth(api.username, api.token)
	} else if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}

	response, err := api.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &RemoteError{Kind: Timeout}
		}
		return nil, fmt.Errorf("platform: couldn't perform http request: %w", err)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't read http response body: %w", err)
	}

	if err := response.Body.Close(); err != nil {
		return nil, fmt.Errorf("platform: couldn't close response body: %w", err)
	}

	switch response.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusPartialContent, http.StatusNoContent, http.StatusResetContent:
		return body, nil
	case http.StatusNotFound:
		return nil, &RemoteError{Kind: NotFound, Status: response.Status}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &RemoteError{Kind: PermissionDenied, Status: response.Status}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, &RemoteError{Kind: ValidationError, Status: response.Status, Details: excerpt(body)}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, &RemoteError{Kind: Timeout, Status: response.Status}
	case http.StatusConflict, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return nil, &RemoteError{Kind: TransientError, Status: response.Status}
	}

	return nil, fmt.Errorf("platform: unknown HTTP response status: %s: %s", response.Status, url.String())
}

func excerpt(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
