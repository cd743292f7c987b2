package cluster

import (
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Store is the gorm-backed cluster record table.
type Store struct {
	db *gorm.DB
}

func OpenStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, "open cluster database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, "migrate cluster database")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Insert(r *Record) error {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	return s.db.Create(r).Error
}

func (s *Store) Get(id string) (*Record, error) {
	var r Record
	err := s.db.First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, onelauncher.NotFound("cluster", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) List() ([]Record, error) {
	var records []Record
	err := s.db.Order("name").Find(&records).Error
	return records, err
}

func (s *Store) Save(r *Record) error {
	r.UpdatedAt = time.Now().UTC()
	return s.db.Save(r).Error
}

func (s *Store) Delete(id string) error {
	return s.db.Delete(&Record{}, "id = ?", id).Error
}
