package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query: a resource name followed by scoping ids and
// an optional filter value. Keys compare structurally through their JSON
// encoding, so two filter structs with equal fields are the same key.
type Key []any

// NewKey is a convenience for Key{parts...}.
func NewKey(parts ...any) Key {
	return Key(parts)
}

func encodePart(p any) string {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%#v", p)
	}
	return string(b)
}

func (k Key) parts() []string {
	out := make([]string, len(k))
	for i, p := range k {
		out[i] = encodePart(p)
	}
	return out
}

// String is the canonical form used for map lookups and de-duplication.
func (k Key) String() string {
	return "[" + strings.Join(k.parts(), ",") + "]"
}

// HasPrefix reports whether the first len(prefix) parts of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	kp, pp := k.parts(), prefix.parts()
	for i := range pp {
		if kp[i] != pp[i] {
			return false
		}
	}
	return true
}
