package generator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ringlabs/twitposter/internal/settings"
)

// ConversationStore is the persistence contract for the per-niche generation
// log. Two implementations exist: the remote chat_history table and the
// device-local JSON log; FallbackStore composes them so the fallback policy
// lives in one place instead of scattered error handling.
type ConversationStore interface {
	List(ctx context.Context, scope settings.Scope, nicheID string) ([]Turn, error)
	Append(ctx context.Context, scope settings.Scope, t Turn) error
	DeleteAt(ctx context.Context, scope settings.Scope, nicheID string, ts time.Time) error
	Clear(ctx context.Context, scope settings.Scope, nicheID string) error
}

// RemoteStore adapts Repo to ConversationStore. Every operation requires a
// session; without one it fails with settings.ErrNotAuthenticated so the
// fallback layer can take over.
type RemoteStore struct {
	repo *Repo
}

func NewRemoteStore(repo *Repo) *RemoteStore {
	return &RemoteStore{repo: repo}
}

func (s *RemoteStore) List(ctx context.Context, scope settings.Scope, nicheID string) ([]Turn, error) {
	if !scope.Authenticated() {
		return nil, settings.ErrNotAuthenticated
	}
	return s.repo.ListTurns(ctx, scope.UserID, nicheID)
}

func (s *RemoteStore) Append(ctx context.Context, scope settings.Scope, t Turn) error {
	if !scope.Authenticated() {
		return settings.ErrNotAuthenticated
	}
	t.UserID = scope.UserID
	return s.repo.InsertTurn(ctx, &t)
}

func (s *RemoteStore) DeleteAt(ctx context.Context, scope settings.Scope, nicheID string, ts time.Time) error {
	if !scope.Authenticated() {
		return settings.ErrNotAuthenticated
	}
	return s.repo.DeleteTurnAt(ctx, scope.UserID, nicheID, ts)
}

func (s *RemoteStore) Clear(ctx context.Context, scope settings.Scope, nicheID string) error {
	if !scope.Authenticated() {
		return settings.ErrNotAuthenticated
	}
	return s.repo.DeleteConversation(ctx, scope.UserID, nicheID)
}

// FallbackStore tries the remote store first and degrades to the local store
// when the remote tier is unavailable or the caller has no session. Remote
// failures are logged, never propagated; availability wins over strict
// consistency, and the migration reconciler repairs the divergence later.
type FallbackStore struct {
	remote ConversationStore
	local  ConversationStore
}

func NewFallbackStore(remote, local ConversationStore) *FallbackStore {
	return &FallbackStore{remote: remote, local: local}
}

func (s *FallbackStore) List(ctx context.Context, scope settings.Scope, nicheID string) ([]Turn, error) {
	turns, err := s.remote.List(ctx, scope, nicheID)
	if err == nil && len(turns) > 0 {
		return turns, nil
	}
	if err != nil && !errors.Is(err, settings.ErrNotAuthenticated) {
		log.Printf("conversation: remote list niche=%s err=%v", nicheID, err)
	}
	return s.local.List(ctx, scope, nicheID)
}

func (s *FallbackStore) Append(ctx context.Context, scope settings.Scope, t Turn) error {
	if err := s.remote.Append(ctx, scope, t); err != nil {
		if !errors.Is(err, settings.ErrNotAuthenticated) {
			log.Printf("conversation: remote append niche=%s err=%v", t.NicheID, err)
		}
		return s.local.Append(ctx, scope, t)
	}
	return nil
}

func (s *FallbackStore) DeleteAt(ctx context.Context, scope settings.Scope, nicheID string, ts time.Time) error {
	if err := s.remote.DeleteAt(ctx, scope, nicheID, ts); err != nil {
		if !errors.Is(err, settings.ErrNotAuthenticated) {
			log.Printf("conversation: remote delete niche=%s err=%v", nicheID, err)
		}
		return s.local.DeleteAt(ctx, scope, nicheID, ts)
	}
	return nil
}

// Clear wipes both tiers: a cleared history must not resurface from the local
// copy on the next fallback read.
func (s *FallbackStore) Clear(ctx context.Context, scope settings.Scope, nicheID string) error {
	if err := s.remote.Clear(ctx, scope, nicheID); err != nil && !errors.Is(err, settings.ErrNotAuthenticated) {
		log.Printf("conversation: remote clear niche=%s err=%v", nicheID, err)
	}
	return s.local.Clear(ctx, scope, nicheID)
}
