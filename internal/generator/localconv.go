package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/settings"
)

// localTurn is the JSON wire form of one turn in the device-local log. The
// field names match what browser clients already wrote to localStorage, so
// pre-existing device data decodes as-is.
type localTurn struct {
	Role      string `json:"role"`
	Parts     string `json:"parts"`
	Timestamp int64  `json:"timestamp"` // unix millis
	NicheID   string `json:"nicheId"`
	Topic     string `json:"topic,omitempty"`
}

// DecodeLocalTurns parses a device-local conversation log. Turns missing a
// niche are attributed to fallbackNiche. Order is preserved (oldest first, as
// appended).
func DecodeLocalTurns(raw string, fallbackNiche string) ([]Turn, error) {
	if raw == "" {
		return nil, nil
	}
	var items []localTurn
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(items))
	for _, it := range items {
		t := Turn{
			Role:      it.Role,
			Content:   it.Parts,
			NicheID:   it.NicheID,
			Timestamp: time.UnixMilli(it.Timestamp).UTC(),
		}
		if t.NicheID == "" {
			t.NicheID = fallbackNiche
		}
		if it.Topic != "" {
			topic := it.Topic
			t.Topic = &topic
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func encodeLocalTurns(turns []Turn) (string, error) {
	items := make([]localTurn, 0, len(turns))
	for _, t := range turns {
		it := localTurn{
			Role:      t.Role,
			Parts:     t.Content,
			Timestamp: t.Timestamp.UnixMilli(),
			NicheID:   t.NicheID,
		}
		if t.Topic != nil {
			it.Topic = *t.Topic
		}
		items = append(items, it)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LocalStore keeps one JSON-encoded log per niche in the device-local store.
type LocalStore struct {
	local *localstore.Store
}

func NewLocalStore(local *localstore.Store) *LocalStore {
	return &LocalStore{local: local}
}

func (s *LocalStore) load(scope settings.Scope, nicheID string) []Turn {
	raw := s.local.Namespace(scope.DeviceID).Get(localstore.ChatHistoryKey(nicheID))
	turns, err := DecodeLocalTurns(raw, nicheID)
	if err != nil {
		// A corrupt log is treated as empty rather than wedging the caller.
		return nil
	}
	return turns
}

func (s *LocalStore) save(scope settings.Scope, nicheID string, turns []Turn) error {
	raw, err := encodeLocalTurns(turns)
	if err != nil {
		return err
	}
	s.local.Namespace(scope.DeviceID).Set(localstore.ChatHistoryKey(nicheID), raw)
	return nil
}

// List returns the local log most-recent-first, matching the remote ordering.
func (s *LocalStore) List(ctx context.Context, scope settings.Scope, nicheID string) ([]Turn, error) {
	turns := s.load(scope, nicheID)
	out := make([]Turn, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, turns[i])
	}
	return out, nil
}

func (s *LocalStore) Append(ctx context.Context, scope settings.Scope, t Turn) error {
	turns := s.load(scope, t.NicheID)
	turns = append(turns, t)
	return s.save(scope, t.NicheID, turns)
}

func (s *LocalStore) DeleteAt(ctx context.Context, scope settings.Scope, nicheID string, ts time.Time) error {
	turns := s.load(scope, nicheID)
	kept := turns[:0]
	for _, t := range turns {
		if t.Timestamp.UnixMilli() != ts.UnixMilli() {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(turns) {
		return nil
	}
	return s.save(scope, nicheID, kept)
}

func (s *LocalStore) Clear(ctx context.Context, scope settings.Scope, nicheID string) error {
	s.local.Namespace(scope.DeviceID).Remove(localstore.ChatHistoryKey(nicheID))
	return nil
}
