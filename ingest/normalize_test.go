package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURLStripsTrackingAndFragment(t *testing.T) {
	got, err := NormalizeURL("HTTPS://Blog.Example.COM/post/?utm_source=x&utm_medium=y&fbclid=abc&id=42#section")
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com/post?id=42", got)
}

func TestNormalizeURLTrailingSlash(t *testing.T) {
	a, err := NormalizeURL("https://example.com/articles/go/")
	require.NoError(t, err)
	b, err := NormalizeURL("https://example.com/articles/go")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeURLSortsQueryParams(t *testing.T) {
	a, err := NormalizeURL("https://example.com/p?b=2&a=1")
	require.NoError(t, err)
	b, err := NormalizeURL("https://example.com/p?a=1&b=2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "https://example.com/p?a=1&b=2", a)
}

func TestNormalizeURLIdempotent(t *testing.T) {
	once, err := NormalizeURL("https://Example.com/post/?ref=rss&x=1")
	require.NoError(t, err)
	twice, err := NormalizeURL(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeURLRejectsRelative(t *testing.T) {
	_, err := NormalizeURL("/just/a/path")
	assert.Error(t, err)
}

func TestRecordIDStable(t *testing.T) {
	id1 := RecordID("https://example.com/post")
	id2 := RecordID("https://example.com/post")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)

	other := RecordID("https://example.com/other")
	assert.NotEqual(t, id1, other)
}
