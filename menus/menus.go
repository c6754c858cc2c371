package menus

// Meta is the route metadata of a menu node.
type Meta struct {
	Title     string `json:"title"`
	Icon      string `json:"icon,omitempty"`
	Hidden    bool   `json:"hidden"`
	KeepAlive bool   `json:"keepAlive"`
}

// Node is one entry of the signed-in user's menu tree
// (GET /api/v1/admin/menus/my). Permission is the code that grants the entry.
type Node struct {
	ID         int64  `json:"id,omitempty"`
	Title      string `json:"title,omitempty"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Component  string `json:"component,omitempty"`
	Permission string `json:"permission,omitempty"`
	Meta       Meta   `json:"meta"`
	Children   []Node `json:"children,omitempty"`
}

// Walk visits nodes depth-first in pre-order. Returning false stops the walk.
func Walk(nodes []Node, visit func(n Node) bool) bool {
	for _, n := range nodes {
		if !visit(n) {
			return false
		}
		if !Walk(n.Children, visit) {
			return false
		}
	}
	return true
}

// ExtractPermissions collects the permission code of every node, depth-first,
// skipping empty codes and duplicates.
func ExtractPermissions(nodes []Node) []string {
	var (
		perms []string
		seen  = make(map[string]struct{})
	)
	Walk(nodes, func(n Node) bool {
		if n.Permission == "" {
			return true
		}
		if _, ok := seen[n.Permission]; !ok {
			seen[n.Permission] = struct{}{}
			perms = append(perms, n.Permission)
		}
		return true
	})
	return perms
}

// Find returns the first node, in pre-order, whose name matches.
func Find(nodes []Node, name string) (Node, bool) {
	var found Node
	ok := !Walk(nodes, func(n Node) bool {
		if n.Name == name {
			found = n
			return false
		}
		return true
	})
	return found, ok
}
