package navigation

import (
	"context"

	"github.com/jrsteele09/go-admin-session/menus"
	"github.com/rs/zerolog/log"
)

const menuLoadFailedMessage = "failed to load menus"

// MenuSource provides the session's menu tree.
type MenuSource interface {
	Menus() []menus.Node
	FetchMenus(ctx context.Context) error
}

// Decision is the outcome of a navigation guard check.
type Decision struct {
	// Redirect is empty when navigation may proceed to the target.
	Redirect string
	// Replace asks for the redirect to replace the current history entry.
	Replace bool
	// Notice is a user-facing message to show alongside the decision.
	Notice string
}

func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Guard decides what happens when navigating to target. Routes are projected
// from the session's menus, loading them first when needed, before any
// authenticated page is entered.
func (r *Router) Guard(ctx context.Context, target string, hasToken bool, src MenuSource) Decision {
	if target == LoginPath {
		if hasToken {
			return Decision{Redirect: HomePath}
		}
		return Decision{}
	}
	if !hasToken {
		return Decision{Redirect: LoginPath}
	}
	if r.Applied() {
		return Decision{}
	}

	nodes := src.Menus()
	if len(nodes) == 0 {
		if err := src.FetchMenus(ctx); err != nil {
			log.Err(err).Str("target", target).Msg("Failed to load menus for navigation")
			return Decision{}
		}
		nodes = src.Menus()
		if len(nodes) == 0 {
			return Decision{}
		}
	}

	if _, err := r.Apply(nodes); err != nil {
		log.Err(err).Str("target", target).Msg("Failed to apply menu routes")
		return Decision{Redirect: LoginPath, Notice: menuLoadFailedMessage}
	}
	// Navigate again so the target resolves against the new routes.
	return Decision{Redirect: target, Replace: true}
}
