package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lookupPath walks a dot-separated key path through decoded JSON objects.
// A missing or null key anywhere along the path yields (nil, nil); a
// non-object along the way is an error.
func lookupPath(doc any, path string) (any, error) {
	cur := doc
	keys := strings.Split(path, ".")
	for i, key := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q is not an object", strings.Join(keys[:i], "."))
		}
		next, found := obj[key]
		if !found || next == nil {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

// firstText returns the first non-empty value among keys in item, rendered
// as text.
func firstText(item map[string]any, keys []string) string {
	for _, k := range keys {
		if s := textOf(item[k]); s != "" {
			return s
		}
	}
	return ""
}

func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// squash trims text and collapses internal runs of whitespace.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
