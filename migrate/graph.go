package migrate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/toothbrush/tml-sync/platform"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
)

// Resolver discovers the transitive dependency closure of a set of
// root objects and orders it for export/import.
type Resolver struct {
	API     ContentAPI
	Workers int

	// Strict makes an unreachable dependency fatal for the whole run
	// instead of excluding just the affected objects.
	Strict bool

	Logger *log.Logger
}

// Resolution is the outcome of dependency discovery.  Order holds the
// included objects, dependencies strictly before dependents; Ranks is
// the same order cut into independent slices, safe to process
// concurrently within a slice.
type Resolution struct {
	Order []GUID
	Ranks [][]GUID

	// Every representation fetched during discovery, so export doesn't
	// fetch twice.
	Objects map[GUID]*platform.ExportResponse

	// Objects whose fetch failed, and the dependents that were dropped
	// because of them (dependent -> the reference that blocked it).
	Unreachable map[GUID]error
	Excluded    map[GUID]GUID
}

// CycleError is fatal: the platform's object model is supposed to be
// acyclic, so a cycle means the manifest cannot be trusted at all.
type CycleError struct {
	Members []GUID
}

func (e *CycleError) Error() string {
	members := make([]string, len(e.Members))
	for i, m := range e.Members {
		members[i] = string(m)
	}
	return fmt.Sprintf("migrate: dependency cycle among: %s", strings.Join(members, ", "))
}

// Resolve fetches from the roots outward until no new references turn
// up, then computes a deterministic topological order.
func (r *Resolver) Resolve(ctx context.Context, roots []GUID) (*Resolution, error) {
	res := &Resolution{
		Objects:     map[GUID]*platform.ExportResponse{},
		Unreachable: map[GUID]error{},
		Excluded:    map[GUID]GUID{},
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	seen := map[GUID]bool{}
	frontier := []GUID{}
	for _, root := range roots {
		if !seen[root] {
			seen[root] = true
			frontier = append(frontier, root)
		}
	}

	var mu sync.Mutex
	wave := 0
	for len(frontier) > 0 {
		if r.Logger != nil {
			r.Logger.Printf("Resolving wave %d: %d object(s)...\n", wave, len(frontier))
		}

		grp, gctx := errgroup.WithContext(ctx)
		grp.SetLimit(workers)

		discovered := map[GUID]bool{}
		for _, guid := range frontier {
			guid := guid
			grp.Go(func() error {
				fetchCtx, cancel := context.WithTimeout(gctx, 10*time.Second)
				defer cancel()

				exported, err := r.API.ExportObject(fetchCtx, platform.ExportObjectQuery{GUID: string(guid)})
				if err != nil {
					if r.Strict {
						return fmt.Errorf("migrate: couldn't fetch %s: %w", guid, err)
					}
					mu.Lock()
					res.Unreachable[guid] = err
					mu.Unlock()
					return nil
				}

				mu.Lock()
				res.Objects[guid] = exported
				for _, ref := range exported.ReferencedGUIDs {
					discovered[GUID(ref)] = true
				}
				mu.Unlock()
				return nil
			})
		}

		if err := grp.Wait(); err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		next := maps.Keys(discovered)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, guid := range next {
			if !seen[guid] {
				seen[guid] = true
				frontier = append(frontier, guid)
			}
		}
		wave++
	}

	r.excludeBlockedDependents(res)

	order, ranks, err := r.topologicalOrder(res)
	if err != nil {
		return nil, err
	}
	res.Order = order
	res.Ranks = ranks

	return res, nil
}

// excludeBlockedDependents transitively drops every object that
// references an unreachable or already-excluded object.  Importing such
// an object would dangle, so it never makes the manifest.
func (r *Resolver) excludeBlockedDependents(res *Resolution) {
	for {
		changed := false
		for guid, exported := range res.Objects {
			if _, gone := res.Excluded[guid]; gone {
				continue
			}
			refs := append([]string{}, exported.ReferencedGUIDs...)
			sort.Strings(refs)
			for _, ref := range refs {
				_, unreachable := res.Unreachable[GUID(ref)]
				_, excluded := res.Excluded[GUID(ref)]
				if unreachable || excluded {
					res.Excluded[guid] = GUID(ref)
					changed = true
					break
				}
			}
		}
		if !changed {
			return
		}
	}
}

// topologicalOrder runs Kahn's algorithm over the included objects.
// Ties among simultaneously-ready objects break on (type priority,
// GUID), so identical input always yields identical output.
func (r *Resolver) topologicalOrder(res *Resolution) ([]GUID, [][]GUID, error) {
	included := map[GUID]bool{}
	for guid := range res.Objects {
		if _, gone := res.Excluded[guid]; !gone {
			included[guid] = true
		}
	}

	emitted := map[GUID]bool{}
	order := []GUID{}
	ranks := [][]GUID{}

	remaining := len(included)
	for remaining > 0 {
		ready := []GUID{}
		for guid := range included {
			if emitted[guid] {
				continue
			}
			ok := true
			for _, ref := range res.Objects[guid].ReferencedGUIDs {
				if included[GUID(ref)] && !emitted[GUID(ref)] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, guid)
			}
		}

		if len(ready) == 0 {
			return nil, nil, &CycleError{Members: r.cycleMembers(res, included, emitted)}
		}

		sort.Slice(ready, func(i, j int) bool {
			pi := typePriority(res.Objects[ready[i]].Header.Type)
			pj := typePriority(res.Objects[ready[j]].Header.Type)
			if pi != pj {
				return pi < pj
			}
			return ready[i] < ready[j]
		})

		for _, guid := range ready {
			emitted[guid] = true
		}
		order = append(order, ready...)
		ranks = append(ranks, ready)
		remaining -= len(ready)
	}

	return order, ranks, nil
}

// cycleMembers isolates the actual cycle out of the stuck leftovers by
// repeatedly shaving off objects no other leftover depends on.
func (r *Resolver) cycleMembers(res *Resolution, included, emitted map[GUID]bool) []GUID {
	stuck := map[GUID]bool{}
	for guid := range included {
		if !emitted[guid] {
			stuck[guid] = true
		}
	}

	for {
		depended := map[GUID]bool{}
		for guid := range stuck {
			for _, ref := range res.Objects[guid].ReferencedGUIDs {
				if stuck[GUID(ref)] {
					depended[GUID(ref)] = true
				}
			}
		}

		trimmed := false
		for guid := range stuck {
			if !depended[guid] {
				delete(stuck, guid)
				trimmed = true
			}
		}
		if !trimmed {
			break
		}
	}

	members := maps.Keys(stuck)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

func typePriority(wireType string) int {
	t, err := platform.ParseObjectType(wireType)
	if err != nil {
		// Unknown types sort last; lexical GUID order still applies.
		return int(platform.LiveboardType) + 1
	}
	return int(t)
}
