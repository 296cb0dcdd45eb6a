package generator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/ai"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/settings"
)

type fakeProvider struct {
	reply string
	err   error
	calls int
	keys  []string
}

func (p *fakeProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	_ = messages
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type testEnv struct {
	svc      *Service
	settings *settings.Service
	repo     *Repo
	local    *localstore.Store
	prov     *fakeProvider
}

func newTestEnv(t *testing.T, name string) *testEnv {
	t.Helper()

	remoteDB, err := gorm.Open(gormsqlite.Open("file:"+name+"_remote?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open remote sqlite: %v", err)
	}
	if err := remoteDB.AutoMigrate(&Turn{}, &settings.UserSettings{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	localDB, err := gorm.Open(gormsqlite.Open("file:"+name+"_local?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open local sqlite: %v", err)
	}
	local, err := localstore.New(localDB)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	settingsSvc := settings.NewService(settings.NewRepo(remoteDB), local, "trial-key", 10)

	prov := &fakeProvider{reply: "Generated post! #tech"}
	reg := ai.NewRegistry()
	reg.Register("gemini", func(ctx context.Context, apiKey string) (ai.Provider, error) {
		_ = ctx
		prov.keys = append(prov.keys, apiKey)
		return prov, nil
	})

	repo := NewRepo(remoteDB)
	store := NewFallbackStore(NewRemoteStore(repo), NewLocalStore(local))

	return &testEnv{
		svc:      NewService(store, settingsSvc, reg, 280),
		settings: settingsSvc,
		repo:     repo,
		local:    local,
		prov:     prov,
	}
}

func TestGenerate_WritesTurnPair_Anonymous(t *testing.T) {
	env := newTestEnv(t, "gen_pair_anon")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}
	start := time.Now().Add(-time.Millisecond)

	text, err := env.svc.Generate(ctx, scope, "tech", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Generated post! #tech" {
		t.Fatalf("unexpected text: %q", text)
	}

	turns, err := env.svc.History(ctx, scope, "tech")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	// most-recent-first: model response before its prompt
	if turns[0].Role != RoleModel || turns[1].Role != RoleUser {
		t.Fatalf("unexpected roles: %q, %q", turns[0].Role, turns[1].Role)
	}
	if turns[0].NicheID != "tech" || turns[1].NicheID != "tech" {
		t.Fatalf("unexpected niches: %q, %q", turns[0].NicheID, turns[1].NicheID)
	}
	if turns[1].Timestamp.Before(start) {
		t.Fatalf("user turn timestamp before call start")
	}
	if !turns[0].Timestamp.After(turns[1].Timestamp) {
		t.Fatalf("model turn not after user turn")
	}
}

func TestGenerate_WritesTurnPair_Authenticated(t *testing.T) {
	env := newTestEnv(t, "gen_pair_auth")
	ctx := context.Background()
	scope := settings.Scope{UserID: 4, DeviceID: "dev-1"}

	if _, err := env.svc.Generate(ctx, scope, "food", "ramen"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	turns, err := env.repo.ListTurns(ctx, 4, "food")
	if err != nil {
		t.Fatalf("list remote turns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 remote turns, got %d", len(turns))
	}
	for _, turn := range turns {
		if turn.Topic == nil || *turn.Topic != "ramen" {
			t.Fatalf("expected topic ramen on %s turn", turn.Role)
		}
	}
}

func TestGenerate_TopicInPrompt(t *testing.T) {
	env := newTestEnv(t, "gen_prompt")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	if _, err := env.svc.Generate(ctx, scope, "science", "black holes"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	turns, _ := env.svc.History(ctx, scope, "science")
	prompt := turns[1].Content
	want := BuildPrompt("science", "black holes", 280)
	if prompt != want {
		t.Fatalf("prompt mismatch:\n got: %q\nwant: %q", prompt, want)
	}
}

func TestGenerate_TrialExhausted_NoBackendCallNoIncrement(t *testing.T) {
	env := newTestEnv(t, "gen_exhausted")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	env.local.Namespace("dev-1").Set(localstore.KeyTrialUsage, "10")

	_, err := env.svc.Generate(ctx, scope, "tech", "")
	if !errors.Is(err, settings.ErrTrialExhausted) {
		t.Fatalf("expected ErrTrialExhausted, got %v", err)
	}
	if env.prov.calls != 0 {
		t.Fatalf("backend called %d times, expected 0", env.prov.calls)
	}
	if got := env.settings.GetFreeTrialUsage(ctx, scope); got != 10 {
		t.Fatalf("usage changed to %d", got)
	}
	if turns, _ := env.svc.History(ctx, scope, "tech"); len(turns) != 0 {
		t.Fatalf("expected no turns written, got %d", len(turns))
	}
}

func TestGenerate_OwnKey_NeverIncrements(t *testing.T) {
	env := newTestEnv(t, "gen_ownkey")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	env.settings.SetAPIKey(ctx, scope, "my-own-key")

	for i := 0; i < 5; i++ {
		if _, err := env.svc.Generate(ctx, scope, "tech", ""); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	if got := env.settings.GetFreeTrialUsage(ctx, scope); got != 0 {
		t.Fatalf("trial usage incremented to %d with own key", got)
	}
	for _, k := range env.prov.keys {
		if k != "my-own-key" {
			t.Fatalf("backend called with %q, expected own key", k)
		}
	}
}

func TestGenerate_TrialLifecycle(t *testing.T) {
	env := newTestEnv(t, "gen_lifecycle")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Generate(ctx, scope, "tech", ""); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if got := env.settings.GetFreeTrialUsage(ctx, scope); got != 3 {
		t.Fatalf("expected usage 3, got %d", got)
	}
	if env.settings.IsTrialExhausted(ctx, scope) {
		t.Fatalf("exhausted at usage 3")
	}

	for i := 3; i < 10; i++ {
		if _, err := env.svc.Generate(ctx, scope, "tech", ""); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	if !env.settings.IsTrialExhausted(ctx, scope) {
		t.Fatalf("expected exhausted at usage 10")
	}

	_, err := env.svc.Generate(ctx, scope, "tech", "")
	if !errors.Is(err, settings.ErrTrialExhausted) {
		t.Fatalf("11th call: expected ErrTrialExhausted, got %v", err)
	}
	if env.prov.calls != 10 {
		t.Fatalf("expected exactly 10 backend calls, got %d", env.prov.calls)
	}
}

func TestGenerate_BackendFailure(t *testing.T) {
	env := newTestEnv(t, "gen_backendfail")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	env.prov.err = errors.New("quota exceeded")

	_, err := env.svc.Generate(ctx, scope, "tech", "")
	if !errors.Is(err, ErrBackendFailure) {
		t.Fatalf("expected ErrBackendFailure, got %v", err)
	}
	// increment happens only after a successful call
	if got := env.settings.GetFreeTrialUsage(ctx, scope); got != 0 {
		t.Fatalf("usage incremented to %d on failure", got)
	}
}

func TestDeleteTurn_PairedAndScoped(t *testing.T) {
	env := newTestEnv(t, "gen_delete")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	if _, err := env.svc.Generate(ctx, scope, "tech", ""); err != nil {
		t.Fatalf("generate tech: %v", err)
	}
	if _, err := env.svc.Generate(ctx, scope, "food", ""); err != nil {
		t.Fatalf("generate food: %v", err)
	}

	techTurns, _ := env.svc.History(ctx, scope, "tech")
	if len(techTurns) != 2 {
		t.Fatalf("expected 2 tech turns, got %d", len(techTurns))
	}
	modelTS := techTurns[0].Timestamp

	// deleting the model turn also removes its paired prompt
	if err := env.svc.DeleteTurn(ctx, scope, "tech", modelTS); err != nil {
		t.Fatalf("delete turn: %v", err)
	}
	techTurns, _ = env.svc.History(ctx, scope, "tech")
	if len(techTurns) != 0 {
		t.Fatalf("expected empty tech history, got %d turns", len(techTurns))
	}

	// the other niche is untouched
	foodTurns, _ := env.svc.History(ctx, scope, "food")
	if len(foodTurns) != 2 {
		t.Fatalf("expected 2 food turns, got %d", len(foodTurns))
	}
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t, "gen_clear")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	if _, err := env.svc.Generate(ctx, scope, "tech", ""); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := env.svc.ClearHistory(ctx, scope, "tech"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	turns, _ := env.svc.History(ctx, scope, "tech")
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d", len(turns))
	}
}

func TestPostsFrom_ProjectsModelTurns(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	topic := "ai"
	turns := []Turn{
		{Role: RoleModel, Content: "newest", NicheID: "tech", Timestamp: ts.Add(2 * time.Millisecond)},
		{Role: RoleUser, Content: "prompt2", NicheID: "tech", Timestamp: ts.Add(time.Millisecond)},
		{Role: RoleModel, Content: "older", NicheID: "tech", Topic: &topic, Timestamp: ts},
	}

	posts := PostsFrom(turns)
	if len(posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(posts))
	}
	if posts[0].Content != "newest" || posts[1].Content != "older" {
		t.Fatalf("unexpected order: %q, %q", posts[0].Content, posts[1].Content)
	}
	wantID := strconv.FormatInt(ts.UnixMilli(), 10)
	if posts[1].ID != wantID {
		t.Fatalf("expected id %s, got %s", wantID, posts[1].ID)
	}
	if posts[1].Topic != "ai" {
		t.Fatalf("expected topic ai, got %q", posts[1].Topic)
	}
	if posts[0].Topic != "" {
		t.Fatalf("expected empty topic, got %q", posts[0].Topic)
	}
}

func TestFallback_AppendGoesLocalWhenAnonymous(t *testing.T) {
	env := newTestEnv(t, "gen_fallback")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	if _, err := env.svc.Generate(ctx, scope, "art", ""); err != nil {
		t.Fatalf("generate: %v", err)
	}

	// nothing in the remote table for an anonymous scope
	var cnt int64
	if err := env.repo.db.Model(&Turn{}).Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected 0 remote rows, got %d", cnt)
	}

	// but the local log holds the pair
	raw := env.local.Namespace("dev-1").Get(localstore.ChatHistoryKey("art"))
	if raw == "" {
		t.Fatalf("expected local log to exist")
	}
	local, err := DecodeLocalTurns(raw, "art")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(local) != 2 {
		t.Fatalf("expected 2 local turns, got %d", len(local))
	}
}

func TestGenerate_ModelTurnAlwaysAfterPrompt(t *testing.T) {
	env := newTestEnv(t, "gen_ts")
	ctx := context.Background()
	scope := settings.Scope{DeviceID: "dev-1"}

	for i := 0; i < 3; i++ {
		if _, err := env.svc.Generate(ctx, scope, "tech", fmt.Sprintf("topic-%d", i)); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	turns, _ := env.svc.History(ctx, scope, "tech")
	if len(turns) != 6 {
		t.Fatalf("expected 6 turns, got %d", len(turns))
	}
	// most-recent-first: every (model, user) pair must order response after
	// prompt even when both were stamped in the same millisecond
	for i := 0; i+1 < len(turns); i += 2 {
		model, user := turns[i], turns[i+1]
		if model.Role != RoleModel || user.Role != RoleUser {
			t.Fatalf("pair %d: unexpected roles %q, %q", i/2, model.Role, user.Role)
		}
		if !model.Timestamp.After(user.Timestamp) {
			t.Fatalf("pair %d: model turn not after user turn", i/2)
		}
	}
}
