package fakebackend

import (
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (b *Backend) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, codeBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Username != b.username || req.Password != b.password {
		writeError(w, r, codeUnauthorized, "incorrect username or password")
		return
	}

	access, err := b.issueAccess(req.Username)
	if err != nil {
		writeError(w, r, 500, err.Error())
		return
	}
	refresh, err := b.issueRefresh(req.Username)
	if err != nil {
		writeError(w, r, 500, err.Error())
		return
	}
	writeSuccess(w, r, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int(b.accessTTL.Seconds()),
	})
}

func (b *Backend) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, codeBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	b.refreshes++
	gate := b.refreshGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	subject, err := b.verify(req.RefreshToken, tokenTypeRefresh)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil || !b.refresh[req.RefreshToken] {
		writeError(w, r, codeUnauthorized, "refresh token is invalid or expired")
		return
	}

	access, err := b.issueAccess(subject)
	if err != nil {
		writeError(w, r, 500, err.Error())
		return
	}
	writeSuccess(w, r, map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   int(b.accessTTL.Seconds()),
	})
}

func (b *Backend) meHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	user := b.user
	b.mu.Unlock()
	writeSuccess(w, r, user)
}

func (b *Backend) logoutHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = decodeBody(r, &req)

	b.mu.Lock()
	b.logouts++
	delete(b.refresh, req.RefreshToken)
	b.mu.Unlock()
	writeSuccess(w, r, nil)
}

func (b *Backend) myMenusHandler(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	menus := b.menus
	b.mu.Unlock()
	writeSuccess(w, r, menus)
}

func (b *Backend) demoHandler(w http.ResponseWriter, r *http.Request) {
	subject, _ := r.Context().Value(contextKeySubject).(string)
	writeSuccess(w, r, map[string]any{
		"path":    r.URL.Path,
		"query":   r.URL.RawQuery,
		"subject": subject,
	})
}
