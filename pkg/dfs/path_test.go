package dfs

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		components []string
		wantErr    bool
	}{
		{name: "Root", input: "/", components: nil},
		{name: "SingleComponent", input: "/a", components: []string{"a"}},
		{name: "Nested", input: "/a/b/c", components: []string{"a", "b", "c"}},
		{name: "EmptyComponentsDropped", input: "//a///b/", components: []string{"a", "b"}},
		{name: "TrailingSlash", input: "/a/", components: []string{"a"}},
		{name: "Empty", input: "", wantErr: true},
		{name: "Relative", input: "a/b", wantErr: true},
		{name: "Colon", input: "/a:b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePath(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, IsCode(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.components, p.Components())
		})
	}
}

func TestPathAppend(t *testing.T) {
	p := MustParsePath("/a")

	child, err := p.Append("b")
	require.NoError(t, err)
	require.Equal(t, "/a/b", child.String())
	// The original path is untouched
	require.Equal(t, "/a", p.String())

	for _, component := range []string{"", "x/y", "x:y"} {
		_, err := p.Append(component)
		require.Error(t, err, "component %q should be rejected", component)
	}
}

func TestPathParentAndLast(t *testing.T) {
	p := MustParsePath("/a/b/c")

	parent, err := p.Parent()
	require.NoError(t, err)
	require.Equal(t, "/a/b", parent.String())

	last, err := p.Last()
	require.NoError(t, err)
	require.Equal(t, "c", last)

	_, err = Root().Parent()
	require.Error(t, err)
	_, err = Root().Last()
	require.Error(t, err)
}

func TestPathIsSubpath(t *testing.T) {
	p := MustParsePath("/a/b/c")

	require.True(t, p.IsSubpath(Root()))
	require.True(t, p.IsSubpath(MustParsePath("/a")))
	require.True(t, p.IsSubpath(MustParsePath("/a/b")))
	require.True(t, p.IsSubpath(p))
	require.False(t, p.IsSubpath(MustParsePath("/a/x")))
	require.False(t, p.IsSubpath(MustParsePath("/a/b/c/d")))
	require.False(t, Root().IsSubpath(p))
}

func TestPathRoundTrip(t *testing.T) {
	for _, raw := range []string{"/", "/a", "/a/b", "/srv/data/file.txt", "//x//y//"} {
		p := MustParsePath(raw)
		again, err := ParsePath(p.String())
		require.NoError(t, err)
		require.True(t, p.Equal(again), "round trip of %q changed the path", raw)
	}
}

func TestPathCompareOrdersAncestorsFirst(t *testing.T) {
	paths := []Path{
		MustParsePath("/b"),
		MustParsePath("/a/b/c"),
		Root(),
		MustParsePath("/a/b"),
		MustParsePath("/a"),
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].Compare(paths[j]) < 0 })

	got := make([]string, len(paths))
	for i, p := range paths {
		got[i] = p.String()
	}
	require.Equal(t, []string{"/", "/a", "/a/b", "/a/b/c", "/b"}, got)

	// Every strict ancestor sorts before its descendants
	for i, a := range paths {
		for _, b := range paths[i+1:] {
			if b.IsSubpath(a) {
				require.Negative(t, a.Compare(b))
			}
		}
	}
}

func TestPathEqualityAndMapKey(t *testing.T) {
	a := MustParsePath("/a/b")
	b := MustParsePath("//a/b/")
	require.True(t, a.Equal(b))
	require.Zero(t, a.Compare(b))

	seen := map[string]bool{a.String(): true}
	require.True(t, seen[b.String()])
}
