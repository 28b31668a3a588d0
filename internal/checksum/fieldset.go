package checksum

import (
	"net/url"
	"slices"
	"strings"
)

// FieldSet is an ordered set of gateway form fields. Keys are case-sensitive;
// iteration follows insertion order unless SortedKeys is used.
type FieldSet struct {
	keys   []string
	values map[string]string
}

func NewFieldSet() *FieldSet {
	return &FieldSet{values: make(map[string]string)}
}

// FieldSetFromMap builds a FieldSet whose insertion order is the sorted key order
// of m, so the result does not depend on Go's map iteration.
func FieldSetFromMap(m map[string]string) *FieldSet {
	fs := NewFieldSet()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fs.Set(k, m[k])
	}
	return fs
}

// FieldSetFromValues takes the first value of every parameter.
func FieldSetFromValues(v url.Values) *FieldSet {
	fs := NewFieldSet()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fs.Set(k, v.Get(k))
	}
	return fs
}

// Set inserts or replaces key. A replaced key keeps its original position.
func (fs *FieldSet) Set(key, value string) {
	if _, ok := fs.values[key]; !ok {
		fs.keys = append(fs.keys, key)
	}
	fs.values[key] = value
}

func (fs *FieldSet) Get(key string) (string, bool) {
	v, ok := fs.values[key]
	return v, ok
}

// Value returns the value for key or an empty string.
func (fs *FieldSet) Value(key string) string {
	return fs.values[key]
}

// Lookup finds key ignoring case. An exact match wins over a case-folded one.
func (fs *FieldSet) Lookup(key string) (string, bool) {
	if v, ok := fs.values[key]; ok {
		return v, true
	}
	for _, k := range fs.keys {
		if strings.EqualFold(k, key) {
			return fs.values[k], true
		}
	}
	return "", false
}

func (fs *FieldSet) Delete(key string) {
	if _, ok := fs.values[key]; !ok {
		return
	}
	delete(fs.values, key)
	fs.keys = slices.DeleteFunc(fs.keys, func(k string) bool { return k == key })
}

func (fs *FieldSet) Len() int {
	return len(fs.keys)
}

// Keys returns the keys in insertion order.
func (fs *FieldSet) Keys() []string {
	return slices.Clone(fs.keys)
}

// SortedKeys returns the keys ordered by their upper-cased form, which is the
// order the gateway concatenates them in. Keys equal under case folding are
// ordered by their raw bytes so the result is deterministic.
func SortedKeys(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.SortStableFunc(sorted, func(a, b string) int {
		if c := strings.Compare(strings.ToUpper(a), strings.ToUpper(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return sorted
}

func (fs *FieldSet) SortedKeys() []string {
	return SortedKeys(fs.keys)
}

// Merge copies every field of other into fs, overriding on collision.
func (fs *FieldSet) Merge(other *FieldSet) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		fs.Set(k, other.values[k])
	}
}

// MergeMap is Merge for a plain map, applied in sorted key order.
func (fs *FieldSet) MergeMap(m map[string]string) {
	fs.Merge(FieldSetFromMap(m))
}

func (fs *FieldSet) Clone() *FieldSet {
	c := NewFieldSet()
	c.Merge(fs)
	return c
}

// Without returns a copy with every key equal to key under case folding removed.
func (fs *FieldSet) Without(key string) *FieldSet {
	c := NewFieldSet()
	for _, k := range fs.keys {
		if strings.EqualFold(k, key) {
			continue
		}
		c.Set(k, fs.values[k])
	}
	return c
}

func (fs *FieldSet) Map() map[string]string {
	m := make(map[string]string, len(fs.keys))
	for _, k := range fs.keys {
		m[k] = fs.values[k]
	}
	return m
}

func (fs *FieldSet) Values() url.Values {
	v := make(url.Values, len(fs.keys))
	for _, k := range fs.keys {
		v.Set(k, fs.values[k])
	}
	return v
}
