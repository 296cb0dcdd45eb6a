package migrate

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/ringlabs/twitposter/internal/generator"
	"github.com/ringlabs/twitposter/internal/localstore"
	"github.com/ringlabs/twitposter/internal/settings"
)

const defaultBatchSize = 50

// Reconciler folds state a device accumulated while anonymous into the user's
// remote rows after sign-in. Settings fields are filled only when the remote
// field is unset (trial usage takes the max so a counter never goes down);
// conversation turns are appended only when their timestamp is not already
// present remotely. Those existence checks make a re-run a no-op, so the
// reconciliation is idempotent and safe to deliver at-least-once.
type Reconciler struct {
	settingsRepo *settings.Repo
	turnsRepo    *generator.Repo
	local        *localstore.Store
	batchSize    int
}

func NewReconciler(settingsRepo *settings.Repo, turnsRepo *generator.Repo, local *localstore.Store) *Reconciler {
	return &Reconciler{
		settingsRepo: settingsRepo,
		turnsRepo:    turnsRepo,
		local:        local,
		batchSize:    defaultBatchSize,
	}
}

// Run migrates one device's local state into the user's remote rows. A failed
// step is logged and the remaining fields/niches still run: partial migration
// self-heals on the next invocation.
func (r *Reconciler) Run(ctx context.Context, userID uint64, deviceID string) error {
	if userID == 0 || deviceID == "" {
		return errors.New("migrate: user id and device id required")
	}

	kv := r.local.Namespace(deviceID)

	if err := r.settingsRepo.EnsureRow(ctx, userID); err != nil {
		return err
	}
	remote, err := r.settingsRepo.Get(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if remote == nil {
		remote = &settings.UserSettings{UserID: userID}
	}

	fields := map[string]any{}
	if v := kv.Get(localstore.KeyAPIKey); v != "" && remote.GeminiAPIKey == "" {
		fields["gemini_api_key"] = v
	}
	if v := kv.Get(localstore.KeyNiche); v != "" && remote.NichePreference == "" {
		fields["niche_preference"] = v
	}
	if v := kv.Get(localstore.KeyTrialUsage); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > remote.FreeTrialUsed {
			fields["free_trial_used"] = n
		}
	}
	if len(fields) > 0 {
		if err := r.settingsRepo.Update(ctx, userID, fields); err != nil {
			log.Printf("migrate: settings user=%d err=%v", userID, err)
		} else {
			log.Printf("migrate: settings user=%d migrated %d field(s)", userID, len(fields))
		}
	}

	for _, key := range kv.KeysWithPrefix(localstore.ChatHistoryPrefix) {
		nicheID := strings.TrimPrefix(key, localstore.ChatHistoryPrefix)
		if nicheID == "" {
			continue
		}
		if err := r.migrateConversation(ctx, userID, kv, nicheID); err != nil {
			log.Printf("migrate: conversation user=%d niche=%s err=%v", userID, nicheID, err)
		}
	}

	return nil
}

func (r *Reconciler) migrateConversation(ctx context.Context, userID uint64, kv *localstore.KV, nicheID string) error {
	raw := kv.Get(localstore.ChatHistoryKey(nicheID))
	localTurns, err := generator.DecodeLocalTurns(raw, nicheID)
	if err != nil {
		return err
	}
	if len(localTurns) == 0 {
		return nil
	}

	remoteStamps, err := r.turnsRepo.ListTimestamps(ctx, userID, nicheID)
	if err != nil {
		return err
	}
	// Compare as normalized instants, not formatted strings: the two tiers
	// store timestamps in different representations.
	existing := make(map[int64]struct{}, len(remoteStamps))
	for _, ts := range remoteStamps {
		existing[ts.UnixMilli()] = struct{}{}
	}

	missing := make([]generator.Turn, 0, len(localTurns))
	for _, t := range localTurns {
		if _, ok := existing[t.Timestamp.UnixMilli()]; ok {
			continue
		}
		t.UserID = userID
		missing = append(missing, t)
	}
	if len(missing) == 0 {
		return nil
	}

	// Insert in fixed-size batches to respect payload limits.
	for i := 0; i < len(missing); i += r.batchSize {
		end := i + r.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		if err := r.turnsRepo.InsertTurns(ctx, missing[i:end]); err != nil {
			log.Printf("migrate: batch user=%d niche=%s offset=%d err=%v", userID, nicheID, i, err)
			continue
		}
		log.Printf("migrate: user=%d niche=%s migrated %d turn(s)", userID, nicheID, end-i)
	}
	return nil
}
