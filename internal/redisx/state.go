package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/convo"
	"github.com/redis/go-redis/v9"
	"time"
)

// StateStore menyimpan convo.State sebagai JSON. TTL redis dipasang sama
// dengan idle timeout, jadi state basi ikut hilang tanpa dibaca.
type StateStore struct {
	Redis   redis.Cmdable
	Service string
	TTL     time.Duration
}

func (s *StateStore) Load(ctx context.Context, userID string) (convo.State, bool, error) {
	b, err := s.Redis.Get(ctx, convoKey(s.Service, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return convo.State{}, false, nil
	}
	if err != nil {
		return convo.State{}, false, fmt.Errorf("load state %s: %w", userID, err)
	}
	st, err := decodeState(b)
	if err != nil {
		// data rusak dianggap tidak ada, akan tertimpa di Save berikutnya
		return convo.State{}, false, nil
	}
	return st, true, nil
}

func (s *StateStore) Save(ctx context.Context, st convo.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.Redis.Set(ctx, convoKey(s.Service, st.UserID), b, s.ttl()).Err(); err != nil {
		return fmt.Errorf("save state %s: %w", st.UserID, err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, convoKey(s.Service, userID)).Err()
}

func (s *StateStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return convo.DefaultTTL
}

func decodeState(b []byte) (convo.State, error) {
	var st convo.State
	if err := json.Unmarshal(b, &st); err != nil {
		return convo.State{}, err
	}
	if st.UserID == "" || st.Step == "" {
		return convo.State{}, errors.New("incomplete state")
	}
	return st, nil
}
