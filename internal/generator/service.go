package generator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ringlabs/twitposter/internal/ai"
	"github.com/ringlabs/twitposter/internal/settings"
)

const defaultProviderName = "gemini"

// Service is the generation gateway: it authorizes the request, calls the
// backend, and records the prompt/response pair in the conversation log.
type Service struct {
	store        ConversationStore
	settings     *settings.Service
	registry     *ai.Registry
	providerName string
	charLimit    int
}

func NewService(store ConversationStore, settingsSvc *settings.Service, registry *ai.Registry, charLimit int) *Service {
	if charLimit <= 0 {
		charLimit = 280
	}
	return &Service{
		store:        store,
		settings:     settingsSvc,
		registry:     registry,
		providerName: defaultProviderName,
		charLimit:    charLimit,
	}
}

// Generate produces one post for the niche (optionally about a topic).
//
// Authorization comes first: with no own credential and the trial at its
// ceiling this returns settings.ErrTrialExhausted without touching the backend
// or the counter. On the trial credential the counter is incremented by
// exactly one, after the backend call succeeded. Both the prompt and the
// response are persisted as conversation turns through the dual-store path;
// persistence failures are logged but do not fail a generation that already
// succeeded.
func (s *Service) Generate(ctx context.Context, scope settings.Scope, nicheID, topic string) (string, error) {
	apiKey, usingTrial, err := s.settings.ResolveCredential(ctx, scope)
	if err != nil {
		return "", err
	}

	prompt := BuildPrompt(nicheID, topic, s.charLimit)

	var topicPtr *string
	if topic != "" {
		t := topic
		topicPtr = &t
	}

	userTS := time.Now().UTC().Truncate(time.Millisecond)
	userTurn := Turn{
		Role:      RoleUser,
		Content:   prompt,
		NicheID:   nicheID,
		Topic:     topicPtr,
		Timestamp: userTS,
	}
	if err := s.store.Append(ctx, scope, userTurn); err != nil {
		log.Printf("generator: persist user turn niche=%s err=%v", nicheID, err)
	}

	provider, err := s.registry.Get(ctx, s.providerName, apiKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	text, err := provider.Chat(ctx, []ai.Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	if usingTrial {
		s.settings.IncrementFreeTrialUsage(ctx, scope)
	}

	modelTS := time.Now().UTC().Truncate(time.Millisecond)
	if !modelTS.After(userTS) {
		// Timestamps are the turn identity; a pair written within the same
		// millisecond must still order response after prompt.
		modelTS = userTS.Add(time.Millisecond)
	}
	modelTurn := Turn{
		Role:      RoleModel,
		Content:   text,
		NicheID:   nicheID,
		Topic:     topicPtr,
		Timestamp: modelTS,
	}
	if err := s.store.Append(ctx, scope, modelTurn); err != nil {
		log.Printf("generator: persist model turn niche=%s err=%v", nicheID, err)
	}

	return text, nil
}

// History returns the conversation for a niche, most-recent-first.
func (s *Service) History(ctx context.Context, scope settings.Scope, nicheID string) ([]Turn, error) {
	return s.store.List(ctx, scope, nicheID)
}

// Posts returns the derived post view for a niche.
func (s *Service) Posts(ctx context.Context, scope settings.Scope, nicheID string) ([]GeneratedPost, error) {
	turns, err := s.store.List(ctx, scope, nicheID)
	if err != nil {
		return nil, err
	}
	return PostsFrom(turns), nil
}

// DeleteTurn removes the turn(s) with that exact timestamp in the niche. When
// the deleted turn is a model response, the paired prompt is deleted too,
// best-effort: turns carry no pair link, so the prompt is found by position —
// the next turn in most-recent-first order, which is the turn inserted
// immediately before the response.
func (s *Service) DeleteTurn(ctx context.Context, scope settings.Scope, nicheID string, ts time.Time) error {
	turns, err := s.store.List(ctx, scope, nicheID)
	if err != nil {
		return err
	}

	// Match on the normalized instant, then delete with the stored timestamp
	// so driver-level precision differences cannot miss the row.
	target := ts
	var pairTS *time.Time
	for i, t := range turns {
		if t.Timestamp.UnixMilli() != ts.UnixMilli() {
			continue
		}
		target = t.Timestamp
		if t.Role == RoleModel && i+1 < len(turns) && turns[i+1].Role == RoleUser {
			prev := turns[i+1].Timestamp
			pairTS = &prev
		}
		break
	}

	if err := s.store.DeleteAt(ctx, scope, nicheID, target); err != nil {
		return err
	}
	if pairTS != nil {
		if err := s.store.DeleteAt(ctx, scope, nicheID, *pairTS); err != nil {
			log.Printf("generator: delete paired user turn niche=%s err=%v", nicheID, err)
		}
	}
	return nil
}

// ClearHistory wipes the niche's conversation from both tiers.
func (s *Service) ClearHistory(ctx context.Context, scope settings.Scope, nicheID string) error {
	return s.store.Clear(ctx, scope, nicheID)
}
