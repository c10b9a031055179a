package pathid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/pathid"
)

func TestRootIsEmptyAbsolute(t *testing.T) {
	require.True(t, pathid.Root.IsRoot())
	assert.Equal(t, "/", pathid.Root.String())
}

func TestParseRoundTrip(t *testing.T) {
	p := pathid.Parse("/a/b/c")
	assert.Equal(t, "/a/b/c", p.String())
	assert.True(t, p.IsAbsolute())
	assert.Equal(t, []string{"a", "b", "c"}, p.Segments())
}

func TestParent(t *testing.T) {
	p := pathid.New("a", "b")
	assert.Equal(t, pathid.New("a"), p.Parent())
	assert.Equal(t, pathid.Root, pathid.Root.Parent())
}

func TestCanonicalPath(t *testing.T) {
	base := pathid.New("a")
	rel := pathid.Relative("b", "c")
	assert.Equal(t, pathid.New("a", "b", "c"), rel.CanonicalPath(base))

	abs := pathid.New("x", "y")
	assert.Equal(t, abs, abs.CanonicalPath(base))
}

func TestContains(t *testing.T) {
	parent := pathid.New("a")
	child := pathid.New("a", "b")
	assert.True(t, parent.Contains(child))
	assert.True(t, parent.Contains(parent))
	assert.False(t, child.Contains(parent))
}

func TestChildParentRoundTrip(t *testing.T) {
	p := pathid.New("a").Child("b")
	assert.Equal(t, pathid.New("a", "b"), p)
	assert.Equal(t, pathid.New("a"), p.Parent())
}

func TestLessLexical(t *testing.T) {
	assert.True(t, pathid.New("a").Less(pathid.New("b")))
	assert.False(t, pathid.New("b").Less(pathid.New("a")))
}
