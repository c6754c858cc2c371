package fakebackend

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-admin-session/token"
)

const traceHeader = "X-Trace-ID"

type contextKey string

const contextKeySubject contextKey = "subject"

func (b *Backend) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(b.recordMiddleware, b.traceMiddleware, b.failureMiddleware)

	router.Route("/api/v1/admin", func(admin chi.Router) {
		admin.Post("/auth/login", b.loginHandler)
		admin.Post("/auth/refresh", b.refreshHandler)
		admin.Get("/demo/public", b.demoHandler)

		admin.Group(func(protected chi.Router) {
			protected.Use(b.requireAuth)
			protected.Get("/auth/me", b.meHandler)
			protected.Post("/auth/logout", b.logoutHandler)
			protected.Get("/demo/need_perm", b.demoHandler)

			protected.Route("/menus", func(menus chi.Router) {
				menus.Get("/my", b.myMenusHandler)
				menus.Get("/tree", b.menuTreeHandler)
				menus.Put("/{id}/sort", b.menuSortHandler)
				b.resourceRoutes(menus, "menus")
			})
			protected.Route("/users", func(users chi.Router) {
				users.Post("/{id}/reset-password", b.resetPasswordHandler)
				users.Post("/{id}/roles", b.assignHandler("roles", "role_ids"))
				b.resourceRoutes(users, "users")
			})
			protected.Route("/roles", func(roles chi.Router) {
				roles.Get("/{id}/permissions", b.linkedHandler("permissions"))
				roles.Post("/{id}/permissions", b.assignHandler("permissions", "permission_ids"))
				roles.Get("/{id}/menus", b.linkedHandler("menus"))
				roles.Post("/{id}/menus", b.assignHandler("menus", "menu_ids"))
				b.resourceRoutes(roles, "roles")
			})
			protected.Route("/permissions", func(perms chi.Router) {
				perms.Get("/tree", b.permissionTreeHandler)
				b.resourceRoutes(perms, "permissions")
			})
		})
	})

	router.Route("/api/v1/mp", func(mp chi.Router) {
		mp.Post("/auth/login_by_code", b.mpLoginHandler)
		mp.Group(func(protected chi.Router) {
			protected.Use(b.requireAuth)
			protected.Post("/auth/bind_phone", b.mpBindPhoneHandler)
			protected.Get("/user/me", b.mpUserHandler)
			protected.Put("/user/me", b.mpUpdateUserHandler)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, codeNotFound, "resource not found")
	})
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// recordMiddleware logs every request in arrival order.
func (b *Backend) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		idx := len(b.requests)
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			TraceID:       r.Header.Get(traceHeader),
			At:            time.Now(),
		})
		b.mu.Unlock()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		b.mu.Lock()
		b.requests[idx].Status = rec.status
		b.mu.Unlock()
	})
}

func (b *Backend) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(traceHeader); id != "" {
			w.Header().Set(traceHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		f, ok := b.failures[r.Method+" "+r.URL.Path]
		b.mu.Unlock()
		if ok {
			writeEnvelope(w, r, f.status, f.code, f.message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth accepts only access tokens this backend issued and has not expired.
func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := token.FromHeader(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, r, codeUnauthorized, "missing bearer token")
			return
		}

		b.mu.Lock()
		valid := b.access[raw]
		b.mu.Unlock()
		if !valid {
			writeError(w, r, codeUnauthorized, "access token expired")
			return
		}

		subject, err := b.verify(raw, tokenTypeAccess)
		if err != nil {
			writeError(w, r, codeUnauthorized, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeySubject, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
