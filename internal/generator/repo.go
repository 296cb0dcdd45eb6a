package generator

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repo is the remote conversation store backed by the chat_history table.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ListTurns returns the user's turns for a niche, most-recent-first.
func (r *Repo) ListTurns(ctx context.Context, userID uint64, nicheID string) ([]Turn, error) {
	var turns []Turn
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND niche_id = ?", userID, nicheID).
		Order("timestamp DESC, id DESC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// ListTimestamps returns just the turn timestamps for a (user, niche) scope.
// The migration reconciler diffs against these.
func (r *Repo) ListTimestamps(ctx context.Context, userID uint64, nicheID string) ([]time.Time, error) {
	var stamps []time.Time
	if err := r.db.WithContext(ctx).Model(&Turn{}).
		Where("user_id = ? AND niche_id = ?", userID, nicheID).
		Pluck("timestamp", &stamps).Error; err != nil {
		return nil, err
	}
	return stamps, nil
}

func (r *Repo) InsertTurn(ctx context.Context, t *Turn) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// InsertTurns appends a batch of turns in one statement.
func (r *Repo) InsertTurns(ctx context.Context, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&turns).Error
}

// DeleteTurnAt removes the row(s) matching that exact timestamp within the
// (user, niche) scope.
func (r *Repo) DeleteTurnAt(ctx context.Context, userID uint64, nicheID string, ts time.Time) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND niche_id = ? AND timestamp = ?", userID, nicheID, ts).
		Delete(&Turn{}).Error
}

// DeleteConversation removes all rows for the (user, niche) scope.
func (r *Repo) DeleteConversation(ctx context.Context, userID uint64, nicheID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND niche_id = ?", userID, nicheID).
		Delete(&Turn{}).Error
}
