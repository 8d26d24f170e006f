package migrate

import (
	"fmt"
	"sort"
	"strings"
)

// UnresolvedReferenceError means the mapping store has no target-side
// identity for one or more of an object's references.  The object must
// not be imported: a dangling reference would corrupt it silently in
// the target org.
type UnresolvedReferenceError struct {
	GUID GUID
	Refs []GUID
}

func (e *UnresolvedReferenceError) Error() string {
	refs := make([]string, len(e.Refs))
	for i, ref := range e.Refs {
		refs[i] = string(ref)
	}
	return fmt.Sprintf("migrate: object %s has unresolved reference(s): %s", e.GUID, strings.Join(refs, ", "))
}

// RewriteReferences substitutes every reference recorded at export time
// with its target-org identity from the mapping store.  Pure: same
// edoc, same store state, byte-identical output.  References the store
// can't resolve fail the whole object.
func RewriteReferences(guid GUID, edoc string, refs []GUID, store *MappingStore, sourceOrg string, targetOrg string) (string, error) {
	ordered := append([]GUID{}, refs...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	unresolved := []GUID{}
	pairs := make([]string, 0, 2*len(ordered))
	for _, ref := range ordered {
		entry, ok := store.Lookup(sourceOrg, ref, targetOrg)
		if !ok {
			unresolved = append(unresolved, ref)
			continue
		}
		pairs = append(pairs, string(ref), string(entry.TargetGUID))
	}

	if len(unresolved) > 0 {
		return "", &UnresolvedReferenceError{GUID: guid, Refs: unresolved}
	}

	// All substitutions happen in a single pass: replaced text is never
	// rescanned, so a target GUID that happens to equal another source
	// GUID doesn't get rewritten a second time.
	return strings.NewReplacer(pairs...).Replace(edoc), nil
}
