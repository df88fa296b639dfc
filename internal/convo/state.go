package convo

import (
	"context"
	"sync"
	"time"
)

type Step string

const (
	StepIdle                 Step = "idle"
	StepAwaitingInterest     Step = "awaiting_interest"
	StepAwaitingQuantity     Step = "awaiting_quantity"
	StepAwaitingConfirmation Step = "awaiting_confirmation"
)

// State is the per-user dialogue progress. One per user, last write wins.
type State struct {
	UserID      string    `json:"user_id"`
	Step        Step      `json:"step"`
	ProductKey  string    `json:"product_key,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func Idle(userID string) State {
	return State{UserID: userID, Step: StepIdle}
}

// Store keeps raw states; staleness is judged by Tracker, not the store.
type Store interface {
	Load(ctx context.Context, userID string) (State, bool, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, userID string) error
}

type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.UserID] = st
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

const DefaultTTL = 5 * time.Minute

// Tracker reads and writes states through a Store using an injected clock.
// A state idle for longer than TTL reads as Idle and is deleted.
type Tracker struct {
	Store Store
	TTL   time.Duration
	Now   func() time.Time
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) ttl() time.Duration {
	if t.TTL > 0 {
		return t.TTL
	}
	return DefaultTTL
}

func (t *Tracker) Get(ctx context.Context, userID string) (State, error) {
	st, ok, err := t.Store.Load(ctx, userID)
	if err != nil {
		return Idle(userID), err
	}
	if !ok || st.Step == StepIdle {
		return Idle(userID), nil
	}
	if t.now().Sub(st.LastUpdated) > t.ttl() {
		return Idle(userID), t.Store.Delete(ctx, userID)
	}
	return st, nil
}

func (t *Tracker) Set(ctx context.Context, st State) (State, error) {
	st.LastUpdated = t.now()
	return st, t.Store.Save(ctx, st)
}

func (t *Tracker) Clear(ctx context.Context, userID string) error {
	return t.Store.Delete(ctx, userID)
}
