package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeBlockFitsEmbed(t *testing.T) {
	t.Parallel()

	values := make([]string, 1000)
	for i := range values {
		values[i] = strings.Repeat("X", 20)
	}

	block := codeBlock(values)
	assert.LessOrEqual(t, len(block), maxDescription)
	assert.True(t, strings.HasPrefix(block, "```\n"))
	assert.True(t, strings.HasSuffix(block, "\n```"))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestCapitalizeAndPlural(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Product not found", capitalize("product not found"))
	assert.Empty(t, capitalize(""))
	assert.Equal(t, "1 code", plural(1, "code"))
	assert.Equal(t, "0 codes", plural(0, "code"))
}
