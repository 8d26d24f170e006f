package migrate

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/toothbrush/tml-sync/platform"
)

func canonicalise(name string) (string, error) {
	str := regexp.MustCompile(`[^a-zA-Z0-9]+`).ReplaceAllString(name, " ")
	str = strings.ToLower(str)
	str = strings.Join(strings.Fields(str), "-")

	if len(str) > 101 {
		str = str[:100]
	}

	str = strings.Trim(str, "-")

	if len(str) < 2 {
		return "", fmt.Errorf("migrate: slug too short: name was '%s'", name)
	}

	return str, nil
}

// ObjectPath derives the export location for an object:
// <type-folder>/<slug>.tml.  If another object already normalized to
// the same path, a short disambiguator from the GUID is appended, so
// two "Monthly Sales" liveboards don't clobber each other.  taken is
// the set of paths already handed out this run.
func ObjectPath(objectType platform.ObjectType, name string, guid GUID, taken map[RelativePath]bool) (RelativePath, error) {
	if guid == "" {
		return "", fmt.Errorf("migrate: empty GUID for object '%s'", name)
	}

	slug, err := canonicalise(name)
	if err != nil {
		return "", fmt.Errorf("migrate: could not canonicalise name: %w", err)
	}

	candidate := RelativePath(path.Join(objectType.Folder(), slug+".tml"))
	if !taken[candidate] {
		return candidate, nil
	}

	disambiguator := string(guid)
	if len(disambiguator) > 8 {
		disambiguator = disambiguator[:8]
	}

	candidate = RelativePath(path.Join(objectType.Folder(), fmt.Sprintf("%s__%s.tml", slug, disambiguator)))
	if taken[candidate] {
		// two objects sharing a name AND a GUID prefix; give up rather
		// than silently overwrite.
		return "", fmt.Errorf("migrate: path collision even with disambiguator: %s", candidate)
	}

	return candidate, nil
}
