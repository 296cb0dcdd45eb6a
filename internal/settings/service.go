package settings

import (
	"context"
	"errors"
	"log"
	"strconv"

	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/localstore"
)

// Service resolves settings across the two storage tiers. Reads prefer the
// remote row when a session exists and mirror every successful remote read
// into the device-local store to keep the fast path warm; writes follow the
// field-specific ordering the clients rely on (counter and niche go local
// first so the UI reflects them immediately, remote is best-effort). Remote
// failures degrade silently to the local store.
type Service struct {
	repo        *Repo
	local       *localstore.Store
	trialAPIKey string
	trialLimit  int
}

func NewService(repo *Repo, local *localstore.Store, trialAPIKey string, trialLimit int) *Service {
	if trialLimit <= 0 {
		trialLimit = 10
	}
	return &Service{repo: repo, local: local, trialAPIKey: trialAPIKey, trialLimit: trialLimit}
}

func (s *Service) TrialLimit() int { return s.trialLimit }

// readRemote returns the user's settings row, or nil when there is no session,
// no row, or the lookup fails. It never propagates an error: the caller falls
// back to the local store.
func (s *Service) readRemote(ctx context.Context, scope Scope) *UserSettings {
	if !scope.Authenticated() {
		return nil
	}
	row, err := s.repo.Get(ctx, scope.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("settings: remote read user=%d err=%v", scope.UserID, err)
		}
		return nil
	}
	return row
}

// writeRemote merges fields into the user's settings row. ErrNotAuthenticated
// when there is no session.
func (s *Service) writeRemote(ctx context.Context, scope Scope, fields map[string]any) error {
	if !scope.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.repo.EnsureRow(ctx, scope.UserID); err != nil {
		return err
	}
	return s.repo.Update(ctx, scope.UserID, fields)
}

func (s *Service) kv(scope Scope) *localstore.KV {
	return s.local.Namespace(scope.DeviceID)
}

// GetAPIKey returns the caller's own credential, or "" if none is saved.
func (s *Service) GetAPIKey(ctx context.Context, scope Scope) string {
	if row := s.readRemote(ctx, scope); row != nil && row.GeminiAPIKey != "" {
		s.kv(scope).Set(localstore.KeyAPIKey, row.GeminiAPIKey)
		return row.GeminiAPIKey
	}
	return s.kv(scope).Get(localstore.KeyAPIKey)
}

// SetAPIKey saves the credential remotely when possible, locally otherwise.
// A newly saved key supersedes any previous one.
func (s *Service) SetAPIKey(ctx context.Context, scope Scope, apiKey string) {
	if err := s.writeRemote(ctx, scope, map[string]any{"gemini_api_key": apiKey}); err != nil {
		if !errors.Is(err, ErrNotAuthenticated) {
			log.Printf("settings: save api key user=%d err=%v", scope.UserID, err)
		}
		s.kv(scope).Set(localstore.KeyAPIKey, apiKey)
		return
	}
	s.kv(scope).Set(localstore.KeyAPIKey, apiKey)
}

// ClearAPIKey removes the credential from both tiers.
func (s *Service) ClearAPIKey(ctx context.Context, scope Scope) {
	if err := s.writeRemote(ctx, scope, map[string]any{"gemini_api_key": ""}); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		log.Printf("settings: clear api key user=%d err=%v", scope.UserID, err)
	}
	s.kv(scope).Remove(localstore.KeyAPIKey)
}

// GetNichePreference returns the active niche, or "" when none was chosen.
func (s *Service) GetNichePreference(ctx context.Context, scope Scope) string {
	if row := s.readRemote(ctx, scope); row != nil && row.NichePreference != "" {
		s.kv(scope).Set(localstore.KeyNiche, row.NichePreference)
		return row.NichePreference
	}
	return s.kv(scope).Get(localstore.KeyNiche)
}

// SetNichePreference stores the niche locally first for immediate use, then
// remotely best-effort.
func (s *Service) SetNichePreference(ctx context.Context, scope Scope, nicheID string) {
	s.kv(scope).Set(localstore.KeyNiche, nicheID)
	if err := s.writeRemote(ctx, scope, map[string]any{"niche_preference": nicheID}); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		log.Printf("settings: save niche user=%d err=%v", scope.UserID, err)
	}
}

// GetFreeTrialUsage returns how many generations ran on the shared trial
// credential.
func (s *Service) GetFreeTrialUsage(ctx context.Context, scope Scope) int {
	if row := s.readRemote(ctx, scope); row != nil {
		s.kv(scope).Set(localstore.KeyTrialUsage, strconv.Itoa(row.FreeTrialUsed))
		return row.FreeTrialUsed
	}
	v := s.kv(scope).Get(localstore.KeyTrialUsage)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// IncrementFreeTrialUsage adds exactly one trial use. The local store is
// updated first so clients see the new count immediately; the remote write is
// best-effort and a failure does not roll the local increment back.
func (s *Service) IncrementFreeTrialUsage(ctx context.Context, scope Scope) {
	n := s.GetFreeTrialUsage(ctx, scope) + 1
	s.kv(scope).Set(localstore.KeyTrialUsage, strconv.Itoa(n))
	if err := s.writeRemote(ctx, scope, map[string]any{"free_trial_used": n}); err != nil && !errors.Is(err, ErrNotAuthenticated) {
		log.Printf("settings: update trial usage user=%d err=%v", scope.UserID, err)
	}
}

// IsTrialExhausted reports whether usage reached the ceiling.
func (s *Service) IsTrialExhausted(ctx context.Context, scope Scope) bool {
	return s.GetFreeTrialUsage(ctx, scope) >= s.trialLimit
}

// ResolveCredential decides whether a generation request may proceed and with
// which credential:
//
//	own key saved            -> own key, trial counter untouched
//	no key, trial remaining  -> shared trial key, counter incremented by the
//	                            caller after a successful generation
//	no key, trial exhausted  -> ErrTrialExhausted
func (s *Service) ResolveCredential(ctx context.Context, scope Scope) (apiKey string, usingTrial bool, err error) {
	if own := s.GetAPIKey(ctx, scope); own != "" {
		return own, false, nil
	}
	if s.IsTrialExhausted(ctx, scope) {
		return "", false, ErrTrialExhausted
	}
	return s.trialAPIKey, true, nil
}
