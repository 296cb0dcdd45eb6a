package generator

import (
	"errors"
	"strconv"
	"time"
)

// ErrBackendFailure wraps any failure of the external generation call. It is
// deliberately generic: clients only branch on trial exhaustion, everything
// else is "failed to generate".
var ErrBackendFailure = errors.New("generation backend failure")

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a per-(user, niche) generation log. The timestamp is
// the turn's natural identity within its niche scope; there is no explicit
// link between a prompt and its response beyond adjacency.
type Turn struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint64    `gorm:"not null;index:idx_chat_history_user_niche_ts,priority:1" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	NicheID   string    `gorm:"type:varchar(64);not null;index:idx_chat_history_user_niche_ts,priority:2" json:"niche_id"`
	Topic     *string   `gorm:"type:varchar(255)" json:"topic,omitempty"`
	Timestamp time.Time `gorm:"not null;index:idx_chat_history_user_niche_ts,priority:3" json:"timestamp"`
	CreatedAt time.Time `json:"-"`
}

func (Turn) TableName() string { return "chat_history" }

// GeneratedPost is the client-facing projection of a model turn. It is always
// derived from the conversation log, never stored on its own.
type GeneratedPost struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	NicheID   string    `json:"niche_id"`
	Topic     string    `json:"topic,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PostsFrom projects the model turns of a conversation into posts, preserving
// order. Pure function: recomputed on every read so the post view can never
// drift from the log.
func PostsFrom(turns []Turn) []GeneratedPost {
	posts := make([]GeneratedPost, 0, len(turns)/2+1)
	for _, t := range turns {
		if t.Role != RoleModel {
			continue
		}
		p := GeneratedPost{
			ID:        strconv.FormatInt(t.Timestamp.UnixMilli(), 10),
			Content:   t.Content,
			NicheID:   t.NicheID,
			CreatedAt: t.Timestamp,
		}
		if t.Topic != nil {
			p.Topic = *t.Topic
		}
		posts = append(posts, p)
	}
	return posts
}
