package streamio

import "strings"

// TagPair is one metadata entry.
type TagPair struct {
	Key   string
	Value string
}

// Tags is an ordered metadata map. Keys compare case-insensitively and
// setting an existing key replaces its value in place, so repeated updates
// keep a stable order.
type Tags struct {
	pairs []TagPair
}

// NewTags returns an empty tag set.
func NewTags() *Tags {
	return &Tags{}
}

// Set adds key=value, replacing an existing entry in place when the key is
// already present (case-insensitive).
func (t *Tags) Set(key, value string) {
	for i := range t.pairs {
		if strings.EqualFold(t.pairs[i].Key, key) {
			t.pairs[i].Value = value
			return
		}
	}
	t.pairs = append(t.pairs, TagPair{Key: key, Value: value})
}

// Get returns the value for key and whether it is present.
func (t *Tags) Get(key string) (string, bool) {
	for i := range t.pairs {
		if strings.EqualFold(t.pairs[i].Key, key) {
			return t.pairs[i].Value, true
		}
	}
	return "", false
}

// Keys returns the tag keys in insertion order.
func (t *Tags) Keys() []string {
	out := make([]string, len(t.pairs))
	for i, p := range t.pairs {
		out[i] = p.Key
	}
	return out
}

// Pairs returns all entries in insertion order.
func (t *Tags) Pairs() []TagPair {
	out := make([]TagPair, len(t.pairs))
	copy(out, t.pairs)
	return out
}

// Len reports the number of entries.
func (t *Tags) Len() int { return len(t.pairs) }
