package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins a prefix and id into a cache key.
func GenerateKey(prefix, id string) string {
	return prefix + ":" + id
}

// GenerateKeyWithParams builds a key from a prefix and any number of
// parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
