package menus_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/stretchr/testify/require"
)

func tree() []menus.Node {
	return []menus.Node{
		{Name: "x", Path: "/x", Permission: "x"},
		{Name: "y", Path: "/y", Permission: "y", Children: []menus.Node{
			{Name: "z", Path: "z", Permission: "z"},
			{Name: "plain", Path: "plain"},
		}},
		{Name: "dup", Path: "/dup", Permission: "x"},
	}
}

func TestExtractPermissionsDepthFirst(t *testing.T) {
	require.Equal(t, []string{"x", "y", "z"}, menus.ExtractPermissions(tree()))
	require.Empty(t, menus.ExtractPermissions(nil))
}

func TestWalkStopsEarly(t *testing.T) {
	var visited []string
	menus.Walk(tree(), func(n menus.Node) bool {
		visited = append(visited, n.Name)
		return n.Name != "z"
	})
	require.Equal(t, []string{"x", "y", "z"}, visited)
}

func TestFind(t *testing.T) {
	n, ok := menus.Find(tree(), "z")
	require.True(t, ok)
	require.Equal(t, "z", n.Path)

	_, ok = menus.Find(tree(), "missing")
	require.False(t, ok)
}

func TestNodeDecodesBackendRoute(t *testing.T) {
	payload := `[{"id":1,"title":"System","name":"System","path":"/system","component":"Layout",
		"meta":{"icon":"setting","title":"System","hidden":false,"keepAlive":true},
		"children":[{"id":2,"title":"Users","name":"Users","path":"users","component":"system/user/index",
		"meta":{"title":"Users","hidden":false,"keepAlive":true},"children":[]}]}]`

	var nodes []menus.Node
	require.NoError(t, json.Unmarshal([]byte(payload), &nodes))
	require.Len(t, nodes, 1)
	require.Equal(t, "Layout", nodes[0].Component)
	require.True(t, nodes[0].Meta.KeepAlive)
	require.Equal(t, "system/user/index", nodes[0].Children[0].Component)
}
