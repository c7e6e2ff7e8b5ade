package requestcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Key derives the cache key for a request. The key is a deterministic function
// of the uppercased method, the endpoint path, and the parameter set: two
// requests that differ only in parameter insertion order produce the same key,
// while any change to method, endpoint, or a parameter value produces a
// different one.
func Key(method, endpoint string, params map[string]string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{'|'})
	h.Write([]byte(endpoint))
	h.Write([]byte{'|'})
	h.Write([]byte(canonicalParams(params)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalParams serializes a parameter set in sorted key order.
func canonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
