package localstore

import (
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one key/value pair in a device namespace.
type Entry struct {
	Namespace string `gorm:"primaryKey;type:varchar(64)"`
	Key       string `gorm:"primaryKey;type:varchar(191);column:kv_key"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "local_kv" }

// Store is the device-local persistent store: a plain key/value table in an
// embedded sqlite file, scoped per device namespace. It is the backend
// counterpart of the browser localStorage the clients used to own, so the
// contract mirrors localStorage: synchronous calls, no errors surfaced, and a
// missing key is a valid empty state.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite file at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return New(db)
}

// New wraps an already-open gorm handle. Tests use this with an in-memory DB.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Namespace returns the key/value view for one device.
func (s *Store) Namespace(ns string) *KV {
	return &KV{db: s.db, ns: ns}
}

// KV is the localStorage-shaped contract for a single namespace.
type KV struct {
	db *gorm.DB
	ns string
}

// Get returns the stored value, or "" when the key is absent. Read errors are
// logged and reported as absence; the local store never fails its caller.
func (kv *KV) Get(key string) string {
	var e Entry
	err := kv.db.Where("namespace = ? AND kv_key = ?", kv.ns, key).First(&e).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Printf("localstore: get ns=%s key=%s err=%v", kv.ns, key, err)
		}
		return ""
	}
	return e.Value
}

// Set upserts the value for key.
func (kv *KV) Set(key, value string) {
	e := Entry{Namespace: kv.ns, Key: key, Value: value}
	err := kv.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		log.Printf("localstore: set ns=%s key=%s err=%v", kv.ns, key, err)
	}
}

// Remove deletes the key. Removing an absent key is a no-op.
func (kv *KV) Remove(key string) {
	err := kv.db.Where("namespace = ? AND kv_key = ?", kv.ns, key).Delete(&Entry{}).Error
	if err != nil {
		log.Printf("localstore: remove ns=%s key=%s err=%v", kv.ns, key, err)
	}
}

// KeysWithPrefix lists the namespace's keys starting with prefix. Used by the
// migration reconciler to discover which niches hold a local conversation log.
func (kv *KV) KeysWithPrefix(prefix string) []string {
	var keys []string
	err := kv.db.Model(&Entry{}).
		Where("namespace = ? AND kv_key LIKE ?", kv.ns, prefix+"%").
		Order("kv_key ASC").
		Pluck("kv_key", &keys).Error
	if err != nil {
		log.Printf("localstore: keys ns=%s prefix=%s err=%v", kv.ns, prefix, err)
		return nil
	}
	return keys
}
