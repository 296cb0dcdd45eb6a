package migrate

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/generator"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/settings"
)

type testEnv struct {
	rec          *Reconciler
	settingsRepo *settings.Repo
	turnsRepo    *generator.Repo
	local        *localstore.Store
	localConv    *generator.LocalStore
}

func newTestEnv(t *testing.T, name string) *testEnv {
	t.Helper()

	remoteDB, err := gorm.Open(gormsqlite.Open("file:"+name+"_remote?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open remote sqlite: %v", err)
	}
	if err := remoteDB.AutoMigrate(&settings.UserSettings{}, &generator.Turn{}); err != nil {
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

	settingsRepo := settings.NewRepo(remoteDB)
	turnsRepo := generator.NewRepo(remoteDB)

	return &testEnv{
		rec:          NewReconciler(settingsRepo, turnsRepo, local),
		settingsRepo: settingsRepo,
		turnsRepo:    turnsRepo,
		local:        local,
		localConv:    generator.NewLocalStore(local),
	}
}

func seedLocalTurns(t *testing.T, env *testEnv, deviceID, nicheID string, n int, base time.Time) {
	t.Helper()
	scope := settings.Scope{DeviceID: deviceID}
	for i := 0; i < n; i++ {
		role := generator.RoleUser
		if i%2 == 1 {
			role = generator.RoleModel
		}
		err := env.localConv.Append(context.Background(), scope, generator.Turn{
			Role:      role,
			Content:   fmt.Sprintf("turn-%d", i),
			NicheID:   nicheID,
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("seed turn %d: %v", i, err)
		}
	}
}

func TestRun_MigratesSettingsOnlyWhenUnset(t *testing.T) {
	env := newTestEnv(t, "mig_settings")
	ctx := context.Background()

	kv := env.local.Namespace("dev-1")
	kv.Set(localstore.KeyAPIKey, "local-key")
	kv.Set(localstore.KeyNiche, "tech")
	kv.Set(localstore.KeyTrialUsage, "7")

	// remote already has a niche preference and usage 3
	if err := env.settingsRepo.EnsureRow(ctx, 1); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := env.settingsRepo.Update(ctx, 1, map[string]any{
		"niche_preference": "food",
		"free_trial_used":  3,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := env.rec.Run(ctx, 1, "dev-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	row, err := env.settingsRepo.Get(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.GeminiAPIKey != "local-key" {
		t.Fatalf("api key not filled, got %q", row.GeminiAPIKey)
	}
	if row.NichePreference != "food" {
		t.Fatalf("remote niche overwritten, got %q", row.NichePreference)
	}
	if row.FreeTrialUsed != 7 {
		t.Fatalf("expected max(7,3)=7, got %d", row.FreeTrialUsed)
	}
}

func TestRun_NeverLowersTrialUsage(t *testing.T) {
	env := newTestEnv(t, "mig_maxusage")
	ctx := context.Background()

	env.local.Namespace("dev-1").Set(localstore.KeyTrialUsage, "2")
	if err := env.settingsRepo.EnsureRow(ctx, 2); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := env.settingsRepo.Update(ctx, 2, map[string]any{"free_trial_used": 9}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := env.rec.Run(ctx, 2, "dev-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	row, _ := env.settingsRepo.Get(ctx, 2)
	if row.FreeTrialUsed != 9 {
		t.Fatalf("remote usage lowered to %d", row.FreeTrialUsed)
	}
}

func TestRun_MigratesConversationsAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "mig_conv")
	ctx := context.Background()

	base := time.UnixMilli(1700000000000).UTC()
	seedLocalTurns(t, env, "dev-1", "tech", 4, base)
	seedLocalTurns(t, env, "dev-1", "food", 2, base.Add(time.Hour))

	// one tech turn already exists remotely
	pre := generator.Turn{
		UserID:    3,
		Role:      generator.RoleUser,
		Content:   "turn-0",
		NicheID:   "tech",
		Timestamp: base,
	}
	if err := env.turnsRepo.InsertTurn(ctx, &pre); err != nil {
		t.Fatalf("insert pre-existing: %v", err)
	}

	if err := env.rec.Run(ctx, 3, "dev-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	techTurns, _ := env.turnsRepo.ListTurns(ctx, 3, "tech")
	if len(techTurns) != 4 {
		t.Fatalf("expected 4 tech turns (1 pre-existing + 3 migrated), got %d", len(techTurns))
	}
	foodTurns, _ := env.turnsRepo.ListTurns(ctx, 3, "food")
	if len(foodTurns) != 2 {
		t.Fatalf("expected 2 food turns, got %d", len(foodTurns))
	}

	// second run adds nothing
	if err := env.rec.Run(ctx, 3, "dev-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	techTurns, _ = env.turnsRepo.ListTurns(ctx, 3, "tech")
	if len(techTurns) != 4 {
		t.Fatalf("idempotence violated: %d tech turns after rerun", len(techTurns))
	}
	foodTurns, _ = env.turnsRepo.ListTurns(ctx, 3, "food")
	if len(foodTurns) != 2 {
		t.Fatalf("idempotence violated: %d food turns after rerun", len(foodTurns))
	}
}

func TestRun_SettingsIdempotent(t *testing.T) {
	env := newTestEnv(t, "mig_idem_settings")
	ctx := context.Background()

	kv := env.local.Namespace("dev-1")
	kv.Set(localstore.KeyAPIKey, "local-key")
	kv.Set(localstore.KeyTrialUsage, "5")

	if err := env.rec.Run(ctx, 4, "dev-1"); err != nil {
		t.Fatalf("run: %v", err)
	}
	first, _ := env.settingsRepo.Get(ctx, 4)

	// remote key changes between runs; a rerun must not clobber it
	if err := env.settingsRepo.Update(ctx, 4, map[string]any{"gemini_api_key": "rotated"}); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if err := env.rec.Run(ctx, 4, "dev-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := env.settingsRepo.Get(ctx, 4)

	if second.GeminiAPIKey != "rotated" {
		t.Fatalf("rerun overwrote a set field: %q", second.GeminiAPIKey)
	}
	if second.FreeTrialUsed != first.FreeTrialUsed {
		t.Fatalf("usage changed across reruns: %d -> %d", first.FreeTrialUsed, second.FreeTrialUsed)
	}
}

func TestRun_BatchesLargeLogs(t *testing.T) {
	env := newTestEnv(t, "mig_batch")
	ctx := context.Background()

	// more turns than one batch holds
	seedLocalTurns(t, env, "dev-1", "history", 120, time.UnixMilli(1700000000000).UTC())

	if err := env.rec.Run(ctx, 5, "dev-1"); err != nil {
		t.Fatalf("run: %v", err)
	}

	turns, _ := env.turnsRepo.ListTurns(ctx, 5, "history")
	if len(turns) != 120 {
		t.Fatalf("expected 120 migrated turns, got %d", len(turns))
	}
}

func TestRun_RequiresIdentity(t *testing.T) {
	env := newTestEnv(t, "mig_identity")
	if err := env.rec.Run(context.Background(), 0, "dev-1"); err == nil {
		t.Fatalf("expected error without user id")
	}
	if err := env.rec.Run(context.Background(), 1, ""); err == nil {
		t.Fatalf("expected error without device id")
	}
}
