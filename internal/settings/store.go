// Package settings persists small string-keyed client preferences, such as
// the backend base URL override and the last selected content type.
package settings

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Well-known setting keys
const (
	KeyBackendURL      = "backend_url"
	KeyLastContentType = "last_content_type"
	KeyLocale          = "locale"
)

// Setting is one persisted key-value pair
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

// Store is the narrow interface the rest of the client depends on
type Store interface {
	Get(key string) (string, bool, error)
	GetDefault(key, fallback string) string
	Set(key, value string) error
	Delete(key string) error
}

// DBStore implements Store on top of a gorm-managed sqlite database
type DBStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// Open opens (creating if needed) the settings database at path
func Open(path string, logger hclog.Logger) (*DBStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate settings schema: %w", err)
	}

	return &DBStore{db: db, logger: logger.Named("settings")}, nil
}

// Get returns the value for key and whether it was present.
func (s *DBStore) Get(key string) (string, bool, error) {
	var setting Setting
	err := s.db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return setting.Value, true, nil
}

// GetDefault returns the value for key, or fallback when the key is absent
// or the read fails. Read failures are logged, not surfaced; a preference
// lookup must never break the caller.
func (s *DBStore) GetDefault(key, fallback string) string {
	value, ok, err := s.Get(key)
	if err != nil {
		s.logger.Warn("setting read failed, using fallback", "key", key, "error", err)
		return fallback
	}
	if !ok {
		return fallback
	}
	return value
}

// Set stores value under key, overwriting any prior value.
func (s *DBStore) Set(key, value string) error {
	setting := Setting{Key: key, Value: value}
	if err := s.db.Save(&setting).Error; err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Unknown keys are a no-op.
func (s *DBStore) Delete(key string) error {
	if err := s.db.Delete(&Setting{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
