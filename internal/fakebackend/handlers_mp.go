package fakebackend

import (
	"net/http"
	"strings"
)

type codeRequest struct {
	Code string `json:"code"`
}

func (b *Backend) mpLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, r, codeBadRequest, "code is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Code != DefaultWxCode {
		writeError(w, r, codeBusiness, "wechat login failed")
		return
	}

	subject := b.mpUser["openid"].(string)
	access, err := b.issueAccess(subject)
	if err != nil {
		writeError(w, r, 500, err.Error())
		return
	}
	refresh, err := b.issueRefresh(subject)
	if err != nil {
		writeError(w, r, 500, err.Error())
		return
	}
	returning := b.mpLoggedIn
	b.mpLoggedIn = true
	phone, _ := b.mpUser["phone"].(string)
	writeSuccess(w, r, map[string]any{
		"access_token":    access,
		"refresh_token":   refresh,
		"token_type":      "Bearer",
		"expires_in":      int(b.accessTTL.Seconds()),
		"is_new_user":     !returning,
		"need_bind_phone": phone == "",
	})
}

func (b *Backend) mpBindPhoneHandler(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, r, codeBadRequest, "code is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.mpUser["phone"] = "13800000000"
	writeSuccess(w, r, map[string]any{"phone": b.mpUser["phone"]})
}

func (b *Backend) mpUserHandler(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, r, b.MPUser())
}

func (b *Backend) mpUpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, codeBadRequest, "invalid request body")
		return
	}

	b.mu.Lock()
	for _, field := range []string{"nickname", "avatar", "gender", "country", "province", "city"} {
		if v, ok := req[field]; ok && v != nil {
			b.mpUser[field] = v
		}
	}
	b.mu.Unlock()
	writeSuccess(w, r, b.MPUser())
}
