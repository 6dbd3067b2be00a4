// Package session keeps the client-side authentication state of the CLI.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/client/api"
	"github.com/bizdesk/crm-api/internal/core/domain"
)

// Status is the authentication state. The zero value is Uninitialized.
type Status int

const (
	Uninitialized Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "uninitialized"
	}
}

// Snapshot is a consistent view of the store. User is set iff Status is
// Authenticated; Profile is the last known profile, possibly cached.
type Snapshot struct {
	Status  Status
	User    *domain.User
	Profile *domain.User
}

// ProfileFetcher loads the profile a token belongs to. *api.Client satisfies it.
type ProfileFetcher interface {
	Me(ctx context.Context, token string) (*domain.User, error)
}

// Store owns the session. Create one per process and hand it to consumers.
type Store struct {
	persist  Persister
	profiles ProfileFetcher
	log      zerolog.Logger

	mu    sync.RWMutex
	state Snapshot
	token string
	subs  map[chan Snapshot]struct{}

	initOnce sync.Once
	initErr  error
	ready    chan struct{}
}

func NewStore(persist Persister, profiles ProfileFetcher, log zerolog.Logger) *Store {
	return &Store{
		persist:  persist,
		profiles: profiles,
		log:      log,
		subs:     make(map[chan Snapshot]struct{}),
		ready:    make(chan struct{}),
	}
}

// Initialize restores the persisted session and validates it against the
// server. It runs once; later calls return the first result. A token the
// server rejects is removed from storage.
func (s *Store) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		defer close(s.ready)
		s.initErr = s.restore(ctx)
	})
	return s.initErr
}

func (s *Store) restore(ctx context.Context) error {
	p, err := s.persist.Load()
	if err != nil {
		s.set(Snapshot{Status: Unauthenticated}, "")
		return err
	}
	if p.Token == "" {
		s.set(Snapshot{Status: Unauthenticated}, "")
		return nil
	}

	profile, err := s.profiles.Me(ctx, p.Token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.setLocked(Snapshot{Status: Unauthenticated}, "")
			s.log.Debug().Msg("stored session rejected, clearing")
			return s.persist.Clear()
		}
		// The server could not be reached; keep the token on disk and
		// expose the cached profile.
		s.setLocked(Snapshot{Status: Unauthenticated, Profile: p.User.user()}, "")
		return err
	}

	s.setLocked(Snapshot{Status: Authenticated, User: profile, Profile: profile}, p.Token)
	if err := s.persist.Save(Persisted{Token: p.Token, User: persistUser(profile)}); err != nil {
		s.log.Warn().Err(err).Msg("failed to refresh stored session")
	}
	return nil
}

// SetSession records a login or registration. A nil user ends the session.
// It also completes initialization so a later Initialize is a no-op.
func (s *Store) SetSession(user *domain.User, token string) error {
	s.markInitialized()

	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil || token == "" {
		s.setLocked(Snapshot{Status: Unauthenticated}, "")
		return s.persist.Clear()
	}
	s.setLocked(Snapshot{Status: Authenticated, User: user, Profile: user}, token)
	return s.persist.Save(Persisted{Token: token, User: persistUser(user)})
}

// SetProfile replaces the cached profile after an update. It does nothing
// once the session has ended.
func (s *Store) SetProfile(profile *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != Authenticated {
		return nil
	}
	s.setLocked(Snapshot{Status: Authenticated, User: profile, Profile: profile}, s.token)
	return s.persist.Save(Persisted{Token: s.token, User: persistUser(profile)})
}

// Logout clears storage and resets to Unauthenticated.
func (s *Store) Logout() error {
	s.markInitialized()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(Snapshot{Status: Unauthenticated}, "")
	return s.persist.Clear()
}

// Wait blocks until initialization has completed or ctx ends.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the bearer token of the current session, if any.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe returns a channel that receives the latest snapshot after each
// change. Slow readers only see the most recent one. Call cancel to stop.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) markInitialized() {
	s.initOnce.Do(func() { close(s.ready) })
}

func (s *Store) set(next Snapshot, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(next, token)
}

// setLocked updates the state and notifies subscribers. Callers hold mu,
// which also serializes writes to the persister.
func (s *Store) setLocked(next Snapshot, token string) {
	s.state = next
	s.token = token

	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}
