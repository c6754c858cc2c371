package refresh

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNoToken is reported when a refresh completes without producing a token.
var ErrNoToken = errors.New("refresh produced no access token")

// Continuation resumes a call that was parked while a refresh was in flight.
// It is called exactly once, with the new access token or with the refresh error.
type Continuation func(accessToken string, err error)

// Observer receives coordinator lifecycle events, e.g. for metrics.
type Observer interface {
	RefreshStarted()
	RefreshFinished(err error)
	Queued(depth int)
}

type nopObserver struct{}

func (nopObserver) RefreshStarted()       {}
func (nopObserver) RefreshFinished(error) {}
func (nopObserver) Queued(int)            {}

// Coordinator lets at most one refresh run at a time. Callers that need a
// refresh while one is in flight are queued and resumed, in arrival order,
// with the outcome of the refresh that is already running.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool
	queue    []Continuation
	observer Observer
}

type CoordinatorOption func(*Coordinator)

// WithObserver registers an observer for refresh lifecycle events.
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

func NewCoordinator(options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{observer: nopObserver{}}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do starts a refresh or joins the one in flight.
//
// If no refresh is in flight the caller becomes the leader: refresh runs on the
// caller's goroutine, every queued continuation is then resumed in FIFO order
// with the result, and only after the queue is empty is the in-flight state
// cleared. Do returns the refresh outcome with leader=true.
//
// If a refresh is already in flight, cont is queued and Do returns immediately
// with leader=false; cont is called later with the shared outcome.
func (c *Coordinator) Do(refresh func() (string, error), cont Continuation) (accessToken string, leader bool, err error) {
	c.mu.Lock()
	if c.inFlight {
		c.queue = append(c.queue, cont)
		depth := len(c.queue)
		c.mu.Unlock()
		c.observer.Queued(depth)
		return "", false, nil
	}
	c.inFlight = true
	c.mu.Unlock()

	c.observer.RefreshStarted()
	accessToken, err = c.run(refresh)
	c.observer.RefreshFinished(err)

	c.drain(accessToken, err)
	return accessToken, true, err
}

// InFlight reports whether a refresh is currently running or draining.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the number of queued continuations.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Coordinator) run(refresh func() (string, error)) (accessToken string, err error) {
	defer func() {
		if r := recover(); r != nil {
			accessToken, err = "", fmt.Errorf("refresh panicked: %v", r)
		}
	}()
	accessToken, err = refresh()
	if err == nil && accessToken == "" {
		err = ErrNoToken
	}
	if err != nil {
		accessToken = ""
	}
	return accessToken, err
}

// drain keeps resuming until the queue is empty, including continuations that
// arrive while draining, then leaves the in-flight state under the same lock.
func (c *Coordinator) drain(accessToken string, err error) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.inFlight = false
			c.mu.Unlock()
			return
		}
		next := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.mu.Unlock()

		resume(next, accessToken, err)
	}
}

func resume(cont Continuation, accessToken string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Queued request continuation panicked")
		}
	}()
	cont(accessToken, err)
}
