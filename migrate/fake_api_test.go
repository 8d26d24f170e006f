package migrate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/toothbrush/tml-sync/platform"
)

// fakeObject is one piece of source-side content the fake can export.
type fakeObject struct {
	name string
	typ  string
	edoc string
	refs []string
}

// fakeAPI stands in for the metadata service.  It exports a canned set
// of source objects, assigns sequential GUIDs on create, and records
// every mutation for assertions.
type fakeAPI struct {
	mu sync.Mutex

	objects   map[string]fakeObject
	fetchErrs map[string]error

	// createErr fails CreateObject when the submitted edoc contains the
	// key (we key by source GUID, which appears in the edoc body).
	createErr map[string]error

	nextID  int
	created map[string]platform.CreateObjectRequest // assigned GUID -> request
	updated map[string]string                       // GUID -> last edoc

	taggedWith []platform.AssignTagsRequest
	sharedWith []platform.ShareRequest
	tagErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		objects:   map[string]fakeObject{},
		fetchErrs: map[string]error{},
		createErr: map[string]error{},
		created:   map[string]platform.CreateObjectRequest{},
		updated:   map[string]string{},
	}
}

func (f *fakeAPI) addObject(guid, name, typ string, refs ...string) {
	edoc := fmt.Sprintf("guid: %s\nname: %s\n", guid, name)
	if len(refs) > 0 {
		edoc += "references:\n"
		for _, ref := range refs {
			edoc += fmt.Sprintf("- guid: %s\n", ref)
		}
	}
	f.objects[guid] = fakeObject{name: name, typ: typ, edoc: edoc, refs: refs}
}

func (f *fakeAPI) ExportObject(ctx context.Context, opts platform.ExportObjectQuery) (*platform.ExportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.fetchErrs[opts.GUID]; ok {
		return nil, err
	}
	obj, ok := f.objects[opts.GUID]
	if !ok {
		return nil, &platform.RemoteError{Kind: platform.NotFound, Status: "404 Not Found"}
	}

	return &platform.ExportResponse{
		Header:          platform.ObjectHeader{ID: opts.GUID, Name: obj.name, Type: obj.typ},
		EDoc:            obj.edoc,
		ReferencedGUIDs: obj.refs,
	}, nil
}

func (f *fakeAPI) CreateObject(ctx context.Context, req platform.CreateObjectRequest) (*platform.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, err := range f.createErr {
		if strings.Contains(req.EDoc, key) {
			return nil, err
		}
	}

	f.nextID++
	guid := fmt.Sprintf("dev-%04d", f.nextID)
	f.created[guid] = req
	return &platform.CreateResponse{ID: guid}, nil
}

func (f *fakeAPI) UpdateObject(ctx context.Context, guid string, req platform.UpdateObjectRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.created[guid]; !ok {
		return &platform.RemoteError{Kind: platform.NotFound, Status: "404 Not Found"}
	}
	f.updated[guid] = req.EDoc
	return nil
}

func (f *fakeAPI) AssignTags(ctx context.Context, req platform.AssignTagsRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tagErr != nil {
		return f.tagErr
	}
	f.taggedWith = append(f.taggedWith, req)
	return nil
}

func (f *fakeAPI) Share(ctx context.Context, req platform.ShareRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sharedWith = append(f.sharedWith, req)
	return nil
}
