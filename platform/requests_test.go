package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPI points a client with canned credentials at a local server.
func testAPI(t *testing.T, server *httptest.Server) *API {
	t.Helper()

	base, err := url.Parse(server.URL)
	require.NoError(t, err)

	return &API{
		BaseURI:  base,
		Org:      "prod",
		Client:   server.Client(),
		username: "paul",
		token:    "sekrit",
	}
}

func TestExportObjectSendsAuthAndParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/metadata/abc-123/export", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("with-references"))
		assert.Equal(t, "prod", r.Header.Get("X-Requested-Org"))

		username, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "paul", username)
		assert.Equal(t, "sekrit", token)

		fmt.Fprint(w, `{
			"header": {"id": "abc-123", "name": "Revenue", "metadata_type": "WORKSHEET"},
			"edoc": "guid: abc-123\n",
			"referenced_guids": ["t1-guid"]
		}`)
	}))
	defer server.Close()

	exported, err := testAPI(t, server).ExportObject(context.Background(), ExportObjectQuery{GUID: "abc-123"})
	require.NoError(t, err)

	assert.Equal(t, "abc-123", exported.Header.ID)
	assert.Equal(t, "WORKSHEET", exported.Header.Type)
	assert.Equal(t, "guid: abc-123\n", exported.EDoc)
	assert.Equal(t, []string{"t1-guid"}, exported.ReferencedGUIDs)
}

func TestRequestClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusNotFound, NotFound},
		{http.StatusUnauthorized, PermissionDenied},
		{http.StatusForbidden, PermissionDenied},
		{http.StatusBadRequest, ValidationError},
		{http.StatusUnprocessableEntity, ValidationError},
		{http.StatusRequestTimeout, Timeout},
		{http.StatusGatewayTimeout, Timeout},
		{http.StatusConflict, TransientError},
		{http.StatusTooManyRequests, TransientError},
		{http.StatusInternalServerError, TransientError},
		{http.StatusServiceUnavailable, TransientError},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			_, err := testAPI(t, server).ExportObject(context.Background(), ExportObjectQuery{GUID: "abc-123"})
			require.Error(t, err)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestValidationErrorCarriesBodyExcerpt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "edoc field 'joins' refers to unknown table", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testAPI(t, server).ExportObject(context.Background(), ExportObjectQuery{GUID: "abc-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown table")
}

func TestCreateObjectRoundTripsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/metadata/import", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateObjectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "guid: abc-123\n", req.EDoc)
		assert.Equal(t, "ANSWER", req.Type)

		fmt.Fprint(w, `{"id": "dev-0001"}`)
	}))
	defer server.Close()

	created, err := testAPI(t, server).CreateObject(context.Background(), CreateObjectRequest{
		EDoc: "guid: abc-123\n",
		Type: "ANSWER",
	})
	require.NoError(t, err)
	assert.Equal(t, "dev-0001", created.ID)
}

func TestCreateObjectRejectsResponseWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	_, err := testAPI(t, server).CreateObject(context.Background(), CreateObjectRequest{EDoc: "guid: x\n", Type: "ANSWER"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not carry an id")
}

func TestListAllObjectsFollowsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/metadata", r.URL.Path)
		assert.Equal(t, "LIVEBOARD", r.URL.Query().Get("type"))

		if r.URL.Query().Get("cursor") == "" {
			fmt.Fprint(w, `{
				"results": [{"id": "lb-1", "name": "One", "metadata_type": "LIVEBOARD"}],
				"_links": {"next": "/api/v2/metadata?cursor=page2"}
			}`)
			return
		}

		assert.Equal(t, "page2", r.URL.Query().Get("cursor"))
		fmt.Fprint(w, `{
			"results": [{"id": "lb-2", "name": "Two", "metadata_type": "LIVEBOARD"}]
		}`)
	}))
	defer server.Close()

	headers, err := testAPI(t, server).ListAllObjects(context.Background(), LiveboardType)
	require.NoError(t, err)

	require.Len(t, headers, 2)
	assert.Equal(t, "lb-1", headers[0].ID)
	assert.Equal(t, "lb-2", headers[1].ID)
}

func TestListAllObjectsDeadlineIsPerPage(t *testing.T) {
	// three pages, each slower than half the per-page budget: the sweep
	// only survives if every page gets a fresh deadline rather than
	// inheriting the first page's.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(60 * time.Millisecond)

		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{
				"results": [{"id": "lb-1", "name": "One", "metadata_type": "LIVEBOARD"}],
				"_links": {"next": "/api/v2/metadata?cursor=page2"}
			}`)
		case "page2":
			fmt.Fprint(w, `{
				"results": [{"id": "lb-2", "name": "Two", "metadata_type": "LIVEBOARD"}],
				"_links": {"next": "/api/v2/metadata?cursor=page3"}
			}`)
		default:
			fmt.Fprint(w, `{
				"results": [{"id": "lb-3", "name": "Three", "metadata_type": "LIVEBOARD"}]
			}`)
		}
	}))
	defer server.Close()

	api := testAPI(t, server)
	api.PageTimeout = 150 * time.Millisecond

	headers, err := api.ListAllObjects(context.Background(), LiveboardType)
	require.NoError(t, err)
	assert.Len(t, headers, 3)
}

func TestBearerAuthWhenNoUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer server.Close()

	api := testAPI(t, server)
	api.username = ""

	_, err := api.GetObjects(context.Background(), GetObjectsQuery{})
	require.NoError(t, err)
}
