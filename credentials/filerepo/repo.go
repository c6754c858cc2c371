package filerepo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-admin-session/credentials"
)

var _ credentials.Store = (*Repo)(nil)

// Repo persists credentials as a small JSON document. Writes go to a temp
// file in the same directory which is then renamed over the target, so a
// reader never observes a half-written document.
type Repo struct {
	path string
	keys credentials.Keys
	mu   sync.Mutex
}

// New returns a Repo writing to path, creating the parent directory if needed.
func New(path string, keys credentials.Keys) (*Repo, error) {
	if path == "" {
		return nil, fmt.Errorf("[filerepo New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("[filerepo New] creating directory: %w", err)
	}
	return &Repo{path: path, keys: keys}, nil
}

// Path returns the document location.
func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Get(_ context.Context) (credentials.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return credentials.Record{}, err
	}
	return r.record(doc), nil
}

func (r *Repo) Set(_ context.Context, accessToken, refreshToken string) error {
	return r.update(func(doc map[string]string) {
		setOrDelete(doc, r.keys.Access, accessToken)
		setOrDelete(doc, r.keys.Refresh, refreshToken)
	})
}

func (r *Repo) SetAccessToken(_ context.Context, accessToken string) error {
	return r.update(func(doc map[string]string) {
		setOrDelete(doc, r.keys.Access, accessToken)
	})
}

func (r *Repo) Clear(_ context.Context) error {
	return r.update(func(doc map[string]string) {
		delete(doc, r.keys.Access)
		delete(doc, r.keys.Refresh)
	})
}

func (r *Repo) update(mutate func(map[string]string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	mutate(doc)
	if len(doc) == 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("[filerepo] removing %s: %w", r.path, err)
		}
		return nil
	}
	return r.write(doc)
}

func (r *Repo) load() (map[string]string, error) {
	doc := make(map[string]string)
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("[filerepo] reading %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("[filerepo] decoding %s: %w", r.path, err)
	}
	return doc, nil
}

func (r *Repo) write(doc map[string]string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("[filerepo] encoding: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("[filerepo] creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo] writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo] syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filerepo] closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("[filerepo] chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("[filerepo] replacing %s: %w", r.path, err)
	}
	return nil
}

func (r *Repo) record(doc map[string]string) credentials.Record {
	return credentials.Record{
		AccessToken:  doc[r.keys.Access],
		RefreshToken: doc[r.keys.Refresh],
	}
}

func setOrDelete(doc map[string]string, key, value string) {
	if value == "" {
		delete(doc, key)
		return
	}
	doc[key] = value
}
