package tokenutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Raw is a decoded raw_data document as delivered by the call feed.
type Raw map[string]any

// ParseRaw decodes raw_data. Empty or invalid input yields an empty Raw.
func ParseRaw(b []byte) Raw {
	if len(b) == 0 {
		return Raw{}
	}
	var r Raw
	if err := json.Unmarshal(b, &r); err != nil || r == nil {
		return Raw{}
	}
	return r
}

// String walks a dotted path ("token.ca") and returns the value as a string.
func (r Raw) String(path string) string {
	var cur any = map[string]any(r)
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[key]
		if !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// FirstString returns the first non-empty value among paths.
func (r Raw) FirstString(paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(r.String(p)); s != "" {
			return s
		}
	}
	return ""
}

func (r Raw) Contract() string { return r.FirstString("token.ca", "contract_address", "ca") }

func (r Raw) Network() string { return r.FirstString("token.network", "network") }

func (r Raw) Message() string { return r.FirstString("text", "message") }

// GroupName is the structured group name as the feed labels it, or "".
func (r Raw) GroupName() string {
	return r.FirstString("groupName", "group.name", "group_name", "group_username")
}
