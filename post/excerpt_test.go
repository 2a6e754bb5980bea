package post

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcerptStripsTags(t *testing.T) {
	got := Excerpt("<p>Hello <strong>world</strong>.</p>", 80)
	assert.Equal(t, "Hello world.", got)
}

func TestExcerptCollapsesWhitespace(t *testing.T) {
	got := Excerpt("<p>first\n  paragraph</p>\n<p>second</p>", 80)
	assert.Equal(t, "first paragraph second", got)
}

func TestExcerptCutsOnWordBoundary(t *testing.T) {
	got := Excerpt("<p>one two three four</p>", 9)
	assert.Equal(t, "one two…", got)
}

func TestExcerptShortTextUnchanged(t *testing.T) {
	got := Excerpt("<p>tiny</p>", 40)
	assert.Equal(t, "tiny", got)
}

func TestExcerptSkipsScriptAndStyle(t *testing.T) {
	got := Excerpt("<style>p{color:red}</style><p>visible</p><script>alert(1)</script>", 80)
	assert.Equal(t, "visible", got)
}

func TestExcerptUnescapesEntities(t *testing.T) {
	got := Excerpt("<p>salt &amp; pepper</p>", 80)
	assert.Equal(t, "salt & pepper", got)
}
