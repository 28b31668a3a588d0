package checksum

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSet_SetKeepsInsertionOrder(t *testing.T) {
	fs := NewFieldSet()
	fs.Set("PSPID", "merchant")
	fs.Set("orderID", "1")
	fs.Set("amount", "100")
	fs.Set("orderID", "2")

	assert.Equal(t, []string{"PSPID", "orderID", "amount"}, fs.Keys())
	assert.Equal(t, "2", fs.Value("orderID"))
	assert.Equal(t, 3, fs.Len())
}

func TestFieldSet_SortedKeysIgnoresCase(t *testing.T) {
	fs := NewFieldSet()
	fs.Set("orderID", "1")
	fs.Set("ACCEPTURL", "a")
	fs.Set("amount", "1")
	fs.Set("CANCELURL", "c")
	fs.Set("currency", "CHF")

	assert.Equal(t, []string{"ACCEPTURL", "amount", "CANCELURL", "currency", "orderID"}, fs.SortedKeys())
}

func TestFieldSet_SortedKeysTieBreak(t *testing.T) {
	assert.Equal(t, []string{"CN", "Cn", "cn"}, SortedKeys([]string{"cn", "CN", "Cn"}))
}

func TestFieldSet_Delete(t *testing.T) {
	fs := FieldSetFromMap(map[string]string{"a": "1", "b": "2", "c": "3"})
	fs.Delete("b")
	fs.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, fs.Keys())
	_, ok := fs.Get("b")
	assert.False(t, ok)
}

func TestFieldSet_MergeOverrides(t *testing.T) {
	base := NewFieldSet()
	base.Set("language", "de_DE")
	base.Set("amount", "100")

	override := NewFieldSet()
	override.Set("language", "fr_FR")
	override.Set("TP", "template.html")

	base.Merge(override)

	assert.Equal(t, []string{"language", "amount", "TP"}, base.Keys())
	assert.Equal(t, "fr_FR", base.Value("language"))
}

func TestFieldSet_LookupPrefersExactMatch(t *testing.T) {
	fs := NewFieldSet()
	fs.Set("shasign", "lower")
	fs.Set("SHASIGN", "upper")

	v, ok := fs.Lookup("SHASIGN")
	require.True(t, ok)
	assert.Equal(t, "upper", v)

	v, ok = fs.Lookup("ShaSign")
	require.True(t, ok)
	assert.Equal(t, "lower", v)
}

func TestFieldSet_Without(t *testing.T) {
	fs := NewFieldSet()
	fs.Set("amount", "1")
	fs.Set("SHASign", "X")

	out := fs.Without("SHASIGN")

	assert.Equal(t, []string{"amount"}, out.Keys())
	assert.Equal(t, 2, fs.Len())
}

func TestFieldSetFromValues_TakesFirstValue(t *testing.T) {
	fs := FieldSetFromValues(url.Values{"orderID": {"A", "B"}, "amount": {"10"}})

	assert.Equal(t, "A", fs.Value("orderID"))
	assert.Equal(t, "10", fs.Values().Get("amount"))
}
