package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Logger surfaces user-facing notices and login redirects through the global
// zerolog logger. It is the default for headless clients such as the CLI.
type Logger struct{}

func (Logger) Error(_ context.Context, msg string) {
	log.Warn().Msg(msg)
}

func (Logger) ToLogin(_ context.Context) {
	log.Info().Msg("Login required")
}

// Recorder keeps every notice and login redirect in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
	logins   int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Error(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *Recorder) ToLogin(_ context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins++
}

// Messages returns a copy of the notices seen so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Logins returns how many times a login redirect was requested.
func (r *Recorder) Logins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logins
}
