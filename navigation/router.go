// Package navigation projects the signed-in user's menu tree into a route
// table. It models route data only; nothing here renders views.
package navigation

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/rs/zerolog/log"
)

const (
	LoginPath     = "/login"
	HomePath      = "/"
	DashboardPath = "/dashboard"
	NotFoundPath  = "/:pathMatch(.*)*"
	NotFoundName  = "NotFound"

	ViewLayout   = "Layout"
	ViewNotFound = "404.vue"
	ViewLogin    = "login/index.vue"
)

type Meta struct {
	Title        string
	Icon         string
	Hidden       bool
	KeepAlive    bool
	RequiresAuth bool
}

// Route is one entry of the route table. View is the resolved view file,
// relative to the views root, or ViewLayout for layout containers.
type Route struct {
	Path     string
	Name     string
	View     string
	Redirect string
	Meta     Meta
	Children []Route
}

// Router holds the static routes and, once applied, the routes projected from
// the menu tree. Projection happens at most once until Reset.
type Router struct {
	mu      sync.RWMutex
	views   map[string]struct{}
	static  []Route
	dynamic []Route
	applied bool
}

// NewRouter creates a router that can resolve the given view files, e.g.
// "dashboard/index.vue" or "system/user/index.vue".
func NewRouter(views ...string) *Router {
	r := &Router{
		views: make(map[string]struct{}, len(views)),
		static: []Route{
			{Path: LoginPath, Name: "Login", View: ViewLogin, Meta: Meta{Title: "Login"}},
			{Path: HomePath, Redirect: DashboardPath},
		},
	}
	for _, v := range views {
		r.views[strings.TrimPrefix(v, "/")] = struct{}{}
	}
	return r
}

// Applied reports whether menu routes are registered.
func (r *Router) Applied() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.applied
}

// Apply registers the routes projected from nodes followed by the not-found
// catch-all. It returns false without changes when routes are already applied
// or nodes is empty.
func (r *Router) Apply(nodes []menus.Node) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applied || len(nodes) == 0 {
		return false, nil
	}

	names := make(map[string]struct{})
	for _, s := range r.static {
		if s.Name != "" {
			names[s.Name] = struct{}{}
		}
	}
	routes, err := r.project(nodes, names)
	if err != nil {
		return false, err
	}
	routes = append(routes, Route{Path: NotFoundPath, Name: NotFoundName, View: ViewNotFound})

	r.dynamic = routes
	r.applied = true
	return true, nil
}

// Reset drops the projected routes so the next session can apply its own menus.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic = nil
	r.applied = false
}

// Routes returns the static routes followed by the projected ones.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Route, 0, len(r.static)+len(r.dynamic))
	out = append(out, r.static...)
	return append(out, r.dynamic...)
}

func (r *Router) project(nodes []menus.Node, names map[string]struct{}) ([]Route, error) {
	routes := make([]Route, 0, len(nodes))
	for _, n := range nodes {
		if n.Path == "" {
			return nil, fmt.Errorf("menu %q has no path", n.Name)
		}
		if n.Name != "" {
			if _, dup := names[n.Name]; dup {
				return nil, fmt.Errorf("duplicate route name %q", n.Name)
			}
			names[n.Name] = struct{}{}
		}

		route := Route{
			Path: n.Path,
			Name: n.Name,
			View: r.resolve(n.Component),
			Meta: Meta{
				Title:        n.Meta.Title,
				Icon:         n.Meta.Icon,
				Hidden:       n.Meta.Hidden,
				KeepAlive:    n.Meta.KeepAlive,
				RequiresAuth: true,
			},
		}
		if len(n.Children) > 0 {
			children, err := r.project(n.Children, names)
			if err != nil {
				return nil, err
			}
			route.Children = children
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// ResolveView maps a menu component reference to a registered view file.
func (r *Router) ResolveView(component string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(component)
}

func (r *Router) resolve(component string) string {
	if component == "" {
		return ViewNotFound
	}
	if component == ViewLayout {
		return ViewLayout
	}

	normalized := strings.TrimPrefix(component, "views/")
	candidates := []string{
		normalized,
		normalized + "/index.vue",
		component,
		component + "/index.vue",
	}
	for _, c := range candidates {
		if _, ok := r.views[c]; ok {
			return c
		}
	}
	log.Warn().Str("component", component).Strs("tried", candidates).Msg("View not found")
	return ViewNotFound
}

// Lookup finds the route serving an absolute path. Child paths are relative
// to their parent unless they start with "/".
func (r *Router) Lookup(target string) (Route, bool) {
	target = path.Clean("/" + strings.TrimPrefix(target, "/"))
	var found Route
	ok := walkRoutes(r.Routes(), "", func(full string, route Route) bool {
		if route.Path == NotFoundPath {
			return true
		}
		if full == target {
			found = route
			return false
		}
		return true
	})
	return found, !ok
}

// Paths lists the absolute path of every route, parents before children.
func (r *Router) Paths() []string {
	var out []string
	walkRoutes(r.Routes(), "", func(full string, _ Route) bool {
		out = append(out, full)
		return true
	})
	return out
}

func walkRoutes(routes []Route, parent string, visit func(full string, r Route) bool) bool {
	for _, route := range routes {
		full := joinRoute(parent, route.Path)
		if !visit(full, route) {
			return false
		}
		if !walkRoutes(route.Children, full, visit) {
			return false
		}
	}
	return true
}

func joinRoute(parent, p string) string {
	if strings.HasPrefix(p, "/") || parent == "" {
		if p == NotFoundPath {
			return p
		}
		return path.Clean("/" + strings.TrimPrefix(p, "/"))
	}
	return path.Join(parent, p)
}
