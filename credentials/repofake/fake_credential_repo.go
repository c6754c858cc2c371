package credentialrepofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-admin-session/credentials"
)

var _ credentials.Store = (*FakeCredentialRepo)(nil)

// FakeCredentialRepo keeps credentials in memory. It backs the "memory"
// credential backend and the package tests.
type FakeCredentialRepo struct {
	values map[string]string
	keys   credentials.Keys
	writes int
	lock   sync.RWMutex
}

func NewFakeCredentialRepo() *FakeCredentialRepo {
	return NewFakeCredentialRepoWithKeys(credentials.AdminKeys())
}

func NewFakeCredentialRepoWithKeys(keys credentials.Keys) *FakeCredentialRepo {
	return &FakeCredentialRepo{
		values: make(map[string]string),
		keys:   keys,
	}
}

func (r *FakeCredentialRepo) Get(_ context.Context) (credentials.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return credentials.Record{
		AccessToken:  r.values[r.keys.Access],
		RefreshToken: r.values[r.keys.Refresh],
	}, nil
}

func (r *FakeCredentialRepo) Set(_ context.Context, accessToken, refreshToken string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.put(r.keys.Access, accessToken)
	r.put(r.keys.Refresh, refreshToken)
	r.writes++
	return nil
}

func (r *FakeCredentialRepo) SetAccessToken(_ context.Context, accessToken string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.put(r.keys.Access, accessToken)
	r.writes++
	return nil
}

func (r *FakeCredentialRepo) Clear(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.values, r.keys.Access)
	delete(r.values, r.keys.Refresh)
	r.writes++
	return nil
}

// Raw returns the value stored under key, for assertions on the key layout.
func (r *FakeCredentialRepo) Raw(key string) (string, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

// Writes returns the number of mutating calls made so far.
func (r *FakeCredentialRepo) Writes() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.writes
}

func (r *FakeCredentialRepo) put(key, value string) {
	if value == "" {
		delete(r.values, key)
		return
	}
	r.values[key] = value
}
