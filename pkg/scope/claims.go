package scope

import (
	"strconv"
	"strings"
)

// claimAt resolves a dotted claim path such as "ext.user_uuid" or
// "groups[0].uuid" in decoded token claims. A leading dot is allowed.
func claimAt(claims map[string]any, path string) (any, bool) {
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil, false
	}

	var cur any = claims
	for _, seg := range strings.Split(path, ".") {
		key, idx, ok := splitIndex(seg)
		if !ok {
			return nil, false
		}
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
		if idx < 0 {
			continue
		}
		arr, isArr := cur.([]any)
		if !isArr || idx >= len(arr) {
			return nil, false
		}
		cur = arr[idx]
	}
	return cur, true
}

// splitIndex splits "name[3]" into ("name", 3). idx is -1 without an index.
func splitIndex(seg string) (key string, idx int, ok bool) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, -1, seg != ""
	}
	if open == 0 || !strings.HasSuffix(seg, "]") {
		return "", 0, false
	}
	n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return seg[:open], n, true
}
