package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Get(ctx context.Context, userID uint64) (*UserSettings, error) {
	var s UserSettings
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// EnsureRow creates the user's settings row if it does not exist yet.
func (r *Repo) EnsureRow(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&UserSettings{UserID: userID}).Error
}

// Update merges the given fields into the user's settings row.
func (r *Repo) Update(ctx context.Context, userID uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&UserSettings{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}
