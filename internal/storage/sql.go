package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// kvEntry is one contract key.
type kvEntry struct {
	Contract   string `gorm:"primaryKey;size:128"`
	Name       string `gorm:"primaryKey;size:512"`
	Value      []byte
	Compressed bool
}

func (kvEntry) TableName() string { return "kv_entries" }

// mapEntry is one field of a contract map.
type mapEntry struct {
	Contract   string `gorm:"primaryKey;size:128"`
	Name       string `gorm:"primaryKey;size:512"`
	Field      string `gorm:"primaryKey;size:512"`
	Value      []byte
	Compressed bool
}

func (mapEntry) TableName() string { return "map_entries" }

// SQLStore keeps contract storage in SQLite through GORM.
type SQLStore struct {
	db        *gorm.DB
	threshold int
}

// Options configures OpenSQL.
type Options struct {
	// CompressThreshold is the value length above which values are stored
	// brotli-compressed. Zero disables compression.
	CompressThreshold int
}

// OpenSQL opens (or creates) the SQLite database at dsn. ":memory:" gives a
// private in-memory database.
func OpenSQL(dsn string, opts Options) (*SQLStore, error) {
	memory := dsn == "" || dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if dsn == "" {
		dsn = ":memory:"
	}
	if !memory {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating storage directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage %q: %w", dsn, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("opening storage %q: %w", dsn, err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		_ = db.Exec("PRAGMA journal_mode=WAL").Error
	}
	if err := db.AutoMigrate(&kvEntry{}, &mapEntry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrating storage: %w", err)
	}
	return &SQLStore{db: db, threshold: opts.CompressThreshold}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) load(contract, key string) (string, error) {
	var e kvEntry
	err := s.db.Where("contract = ? AND name = ?", contract, key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("storage get %s: %w", key, err)
	}
	return decodeValue(e.Value, e.Compressed)
}

func (s *SQLStore) Get(contract, key string) (*string, error) {
	if err := validate(contract, key); err != nil {
		return nil, err
	}
	v, err := s.load(contract, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLStore) Put(contract, key, value string) error {
	if err := validate(contract, key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	data, compressed, err := encodeValue(value, s.threshold)
	if err != nil {
		return err
	}
	e := kvEntry{Contract: contract, Name: key, Value: data, Compressed: compressed}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&e).Error; err != nil {
		return fmt.Errorf("storage put %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Has(contract, key string) (bool, error) {
	if err := validate(contract, key); err != nil {
		return false, err
	}
	var n int64
	err := s.db.Model(&kvEntry{}).Where("contract = ? AND name = ?", contract, key).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("storage has %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Delete(contract, key string) error {
	if err := validate(contract, key); err != nil {
		return err
	}
	err := s.db.Where("contract = ? AND name = ?", contract, key).Delete(&kvEntry{}).Error
	if err != nil {
		return fmt.Errorf("storage del %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) MapGet(contract, key, field string) (*string, error) {
	if err := validate(contract, key, field); err != nil {
		return nil, err
	}
	var e mapEntry
	err := s.db.Where("contract = ? AND name = ? AND field = ?", contract, key, field).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage mapGet %s.%s: %w", key, field, err)
	}
	v, err := decodeValue(e.Value, e.Compressed)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLStore) MapPut(contract, key, field, value string) error {
	if err := validate(contract, key, field); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	data, compressed, err := encodeValue(value, s.threshold)
	if err != nil {
		return err
	}
	e := mapEntry{Contract: contract, Name: key, Field: field, Value: data, Compressed: compressed}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&e).Error; err != nil {
		return fmt.Errorf("storage mapPut %s.%s: %w", key, field, err)
	}
	return nil
}

func (s *SQLStore) MapHas(contract, key, field string) (bool, error) {
	if err := validate(contract, key, field); err != nil {
		return false, err
	}
	var n int64
	err := s.db.Model(&mapEntry{}).
		Where("contract = ? AND name = ? AND field = ?", contract, key, field).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("storage mapHas %s.%s: %w", key, field, err)
	}
	return n > 0, nil
}

func (s *SQLStore) MapDelete(contract, key, field string) error {
	if err := validate(contract, key, field); err != nil {
		return err
	}
	err := s.db.Where("contract = ? AND name = ? AND field = ?", contract, key, field).
		Delete(&mapEntry{}).Error
	if err != nil {
		return fmt.Errorf("storage mapDel %s.%s: %w", key, field, err)
	}
	return nil
}

func (s *SQLStore) MapKeys(contract, key string) ([]string, error) {
	if err := validate(contract, key); err != nil {
		return nil, err
	}
	var fields []string
	err := s.db.Model(&mapEntry{}).
		Where("contract = ? AND name = ?", contract, key).
		Order("field").
		Pluck("field", &fields).Error
	if err != nil {
		return nil, fmt.Errorf("storage mapKeys %s: %w", key, err)
	}
	return fields, nil
}

func (s *SQLStore) MapLen(contract, key string) (int, error) {
	if err := validate(contract, key); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.Model(&mapEntry{}).Where("contract = ? AND name = ?", contract, key).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("storage mapLen %s: %w", key, err)
	}
	return int(n), nil
}
