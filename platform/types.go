package platform

import "fmt"

// User describes the authenticated session user, as returned by
// /api/v2/auth/session/user.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	OrgID       string `json:"current_org_id"`
}

// ObjectType is the closed set of content variants the platform can
// export as TML.  The declaration order doubles as the import priority:
// earlier types never reference later ones (connections and tables
// underpin worksheets, which underpin answers and liveboards).
type ObjectType int

const (
	ConnectionType ObjectType = iota
	TableType
	WorksheetType
	AnswerType
	LiveboardType
)

// objectTypeNames uses the platform's metadata_type wire spelling.
var objectTypeNames = map[ObjectType]string{
	ConnectionType: "CONNECTION",
	TableType:      "LOGICAL_TABLE",
	WorksheetType:  "WORKSHEET",
	AnswerType:     "ANSWER",
	LiveboardType:  "LIVEBOARD",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Folder is the per-type directory name in an export store.
func (t ObjectType) Folder() string {
	switch t {
	case ConnectionType:
		return "connections"
	case TableType:
		return "tables"
	case WorksheetType:
		return "worksheets"
	case AnswerType:
		return "answers"
	case LiveboardType:
		return "liveboards"
	default:
		return "misc"
	}
}

// ParseObjectType accepts both the wire spelling and the friendly
// spelling users give on the command line ("worksheet", "liveboard").
func ParseObjectType(s string) (ObjectType, error) {
	friendly := map[string]ObjectType{
		"connection": ConnectionType,
		"table":      TableType,
		"worksheet":  WorksheetType,
		"answer":     AnswerType,
		"liveboard":  LiveboardType,
	}
	if t, ok := friendly[s]; ok {
		return t, nil
	}
	for t, name := range objectTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("platform: unknown object type: %s", s)
}
