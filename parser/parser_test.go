package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Why we moved our queue to Kafka</title></head>
<body>
<article>
<h1>Why we moved our queue to Kafka</h1>
<p>Our old queue was a single process with an in-memory buffer. Every deploy dropped
messages, and every traffic spike turned into an incident. This post walks through the
migration, the consumer group layout we settled on, and the failure modes we hit in the
first month of production traffic.</p>
<p>The short version: partition by entity key, commit offsets manually, and treat every
handler as if it will be called twice.</p>
</article>
</body>
</html>`

func TestExtractText(t *testing.T) {
	text, method, err := ExtractText(articleHTML)
	require.NoError(t, err)
	assert.NotEmpty(t, method)
	assert.Contains(t, text, "consumer group layout")
	assert.Contains(t, text, "commit offsets manually")
}

func TestExtractTextEmptyDocument(t *testing.T) {
	_, _, err := ExtractText("<html><body></body></html>")
	assert.Error(t, err)
}

func TestNormalizeWhitespace(t *testing.T) {
	in := "  a\tb  \n\n\n c   d \n"
	assert.Equal(t, "a b\nc d", NormalizeWhitespace(in))
}

func TestNormalizeWhitespaceStable(t *testing.T) {
	once := NormalizeWhitespace("x   y\n\nz")
	assert.Equal(t, once, NormalizeWhitespace(once))
	assert.False(t, strings.Contains(once, "  "))
}
