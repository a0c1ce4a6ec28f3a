package preview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Markdown(t *testing.T) {
	out, err := Render("# Meeting Summary\n\n## Action Items:\n1. John to finalize specs\n\n- Approved budget")
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "<h1>Meeting Summary</h1>")
	assert.Contains(t, s, "<h2>Action Items:</h2>")
	assert.Contains(t, s, "<li>John to finalize specs</li>")
	assert.Contains(t, s, "<ul>")
}

func TestRender_DropsRawHTML(t *testing.T) {
	out, err := Render("hello <script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, string(out), "<script>")
}

func TestRender_Placeholder(t *testing.T) {
	out, err := Render("  \n")
	require.NoError(t, err)
	assert.Contains(t, string(out), Placeholder)
}

func TestRender_RepeatedEditsAreStable(t *testing.T) {
	edits := []string{"# A", "# A\n\nmore", "# A\n\nmore\n- item", "# A\n\nmore\n- item"}
	var last string
	for i, e := range edits {
		out, err := Render(e)
		require.NoError(t, err)
		again, err := Render(e)
		require.NoError(t, err)
		assert.Equal(t, out, again)
		if i == len(edits)-1 {
			assert.Equal(t, last, string(out))
		}
		last = string(out)
	}
	assert.True(t, strings.HasPrefix(last, "<h1>A</h1>"))
}
