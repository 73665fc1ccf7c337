package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/shared"
)

// DefaultStateTTL bounds how long an issued state can be redeemed.
const DefaultStateTTL = 10 * time.Minute

// stateBytes is the entropy of a generated state, hex encoded to twice as many characters.
const stateBytes = 32

// StateStore keeps issued OAuth states until they are consumed or pruned.
//
// Take must look up and delete in one atomic step: of concurrent calls with the
// same state exactly one may succeed.
type StateStore interface {
	Put(state, userID string, issuedAt time.Time) error
	Take(state string) (userID string, issuedAt time.Time, err error)
	Prune(cutoff time.Time) (int, error)
}

// Coordinator issues and redeems single-use OAuth state tokens bound to a user.
type Coordinator struct {
	store   StateStore
	ttl     time.Duration
	clock   shared.Clock
	metrics *metrics.Metrics
}

// CoordinatorOpts configures a [Coordinator]. Zero values fall back to defaults.
type CoordinatorOpts struct {
	Store   StateStore
	TTL     time.Duration
	Clock   shared.Clock
	Metrics *metrics.Metrics
}

// NewCoordinator creates a [Coordinator] over opts.Store, or over a [MemoryStateStore] when nil.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	if opts.Store == nil {
		opts.Store = NewMemoryStateStore()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultStateTTL
	}
	return &Coordinator{store: opts.Store, ttl: opts.TTL, clock: opts.Clock, metrics: opts.Metrics}
}

// GenerateState records a new random state for userID and prunes expired ones.
func (c *Coordinator) GenerateState(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}

	now := c.clock.Now()
	if _, err := c.store.Prune(now.Add(-c.ttl)); err != nil {
		return "", err
	}

	state, err := shared.RandomHex(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	if err := c.store.Put(state, userID, now); err != nil {
		return "", err
	}

	c.metrics.RecordState("issued")
	return state, nil
}

// ValidateAndConsume redeems state and returns the user it was issued to.
//
// Unknown, already consumed and expired states all fail with [shared.ErrInvalidState].
func (c *Coordinator) ValidateAndConsume(state string) (string, error) {
	if state == "" {
		c.metrics.RecordState("rejected")
		return "", shared.ErrInvalidState
	}

	userID, issuedAt, err := c.store.Take(state)
	if errors.Is(err, shared.ErrInvalidState) {
		c.metrics.RecordState("rejected")
		return "", shared.ErrInvalidState
	}
	if err != nil {
		return "", err
	}

	if c.clock.Now().Sub(issuedAt) > c.ttl {
		c.metrics.RecordState("rejected")
		return "", shared.ErrInvalidState
	}

	c.metrics.RecordState("consumed")
	return userID, nil
}

type issuedState struct {
	userID   string
	issuedAt time.Time
}

// MemoryStateStore is a [StateStore] for a single process.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]issuedState
}

// NewMemoryStateStore creates an empty [MemoryStateStore].
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]issuedState)}
}

func (s *MemoryStateStore) Put(state, userID string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = issuedState{userID: userID, issuedAt: issuedAt}
	return nil
}

func (s *MemoryStateStore) Take(state string) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[state]
	if !ok {
		return "", time.Time{}, shared.ErrInvalidState
	}
	delete(s.states, state)
	return entry.userID, entry.issuedAt, nil
}

func (s *MemoryStateStore) Prune(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for state, entry := range s.states {
		if entry.issuedAt.Before(cutoff) {
			delete(s.states, state)
			n++
		}
	}
	return n, nil
}

// Len reports how many states are pending.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// SQLiteStateStore is a [StateStore] shared by every process using the same database.
type SQLiteStateStore struct {
	repo *repositories.StateRepository
}

// NewSQLiteStateStore wraps repo.
func NewSQLiteStateStore(repo *repositories.StateRepository) *SQLiteStateStore {
	return &SQLiteStateStore{repo: repo}
}

func (s *SQLiteStateStore) Put(state, userID string, issuedAt time.Time) error {
	return s.repo.Insert(state, userID, issuedAt)
}

func (s *SQLiteStateStore) Take(state string) (string, time.Time, error) {
	return s.repo.Consume(state)
}

func (s *SQLiteStateStore) Prune(cutoff time.Time) (int, error) {
	n, err := s.repo.PruneBefore(cutoff)
	return int(n), err
}

// NewStateStore selects the store named by the security.state_store setting.
func NewStateStore(kind string, store *repositories.Store) (StateStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStateStore(), nil
	case "sqlite":
		if store == nil {
			return nil, fmt.Errorf("%w: sqlite state store needs a database", shared.ErrInvalidConfig)
		}
		return NewSQLiteStateStore(store.States), nil
	default:
		return nil, fmt.Errorf("%w: unknown state store %q", shared.ErrInvalidConfig, kind)
	}
}
