package packages

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Store is the gorm-backed Package DAO of spec §4.D.
type Store struct {
	db *gorm.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, "open package database")
	}

	if err := db.AutoMigrate(&Record{}, &Link{}, &Override{}); err != nil {
		return nil, onelauncher.Wrap(onelauncher.KindIO, err, "migrate package database")
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

// Insert adds a new package row. Duplicate hashes are treated as a
// no-op success, since the file content (and so its identity) cannot
// differ for the same hash.
func (s *Store) Insert(r *Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(r).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (s *Store) GetByHash(hash string) (*Record, error) {
	var r Record
	err := s.db.First(&r, "hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, onelauncher.NotFound("package", hash)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetByProject(provider Provider, projectID string) (*Record, error) {
	var r Record
	err := s.db.First(&r, "provider = ? AND project_id = ?", provider, projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, onelauncher.NotFound("package", projectID)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Link writes a cluster↔package row and hard-links the package file
// into the cluster directory, per spec §4.D. destPath is the target
// hard-link path inside the cluster's type folder.
func (s *Store) Link(clusterID, hash, bundleName, fileID, destPath string) error {
	rec, err := s.GetByHash(hash)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, destPath)
	}
	if _, err := os.Stat(destPath); err == nil {
		_ = os.Remove(destPath)
	}
	if err := os.Link(rec.StoragePath, destPath); err != nil {
		return onelauncher.Wrap(onelauncher.KindIO, err, destPath)
	}

	return s.db.Create(&Link{
		ClusterID:  clusterID,
		Hash:       hash,
		BundleName: bundleName,
		FileID:     fileID,
		LinkedAt:   time.Now().UTC(),
	}).Error
}

// Unlink deletes the link row and the hard-link file, but never the
// package-store file itself, per spec §4.D.
func (s *Store) Unlink(clusterID, hash, linkedFilePath string) error {
	if linkedFilePath != "" {
		if err := os.Remove(linkedFilePath); err != nil && !os.IsNotExist(err) {
			return onelauncher.Wrap(onelauncher.KindIO, err, linkedFilePath)
		}
	}
	return s.db.Where("cluster_id = ? AND hash = ?", clusterID, hash).Delete(&Link{}).Error
}

func (s *Store) ListLinked(clusterID string) ([]Link, error) {
	var links []Link
	err := s.db.Where("cluster_id = ?", clusterID).Find(&links).Error
	return links, err
}

func (s *Store) IsLinked(clusterID, hash string) (bool, error) {
	var count int64
	err := s.db.Model(&Link{}).Where("cluster_id = ? AND hash = ?", clusterID, hash).Count(&count).Error
	return count > 0, err
}

// Delete removes the package row and its on-disk file, but only if no
// Link rows still reference the hash (reference-counted), per spec
// §4.D.
func (s *Store) Delete(hash string) error {
	var count int64
	if err := s.db.Model(&Link{}).Where("hash = ?", hash).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return onelauncher.WithFields(onelauncher.KindAlreadyExists,
			"package still linked", map[string]any{"hash": hash, "links": count})
	}

	rec, err := s.GetByHash(hash)
	if err != nil {
		return err
	}
	if err := s.db.Delete(&Record{}, "hash = ?", hash).Error; err != nil {
		return err
	}
	if err := os.Remove(rec.StoragePath); err != nil && !os.IsNotExist(err) {
		return onelauncher.Wrap(onelauncher.KindIO, err, rec.StoragePath)
	}
	return nil
}

// SetOverride upserts the sticky per-(bundle,file) user decision, per
// spec §4.H.
func (s *Store) SetOverride(clusterID, bundleName, fileID string, state OverrideState) error {
	var existing Override
	err := s.db.First(&existing, "cluster_id = ? AND bundle_name = ? AND file_id = ?", clusterID, bundleName, fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&Override{ClusterID: clusterID, BundleName: bundleName, FileID: fileID, State: state}).Error
	}
	if err != nil {
		return err
	}
	existing.State = state
	return s.db.Save(&existing).Error
}

func (s *Store) GetOverride(clusterID, bundleName, fileID string) (OverrideState, bool) {
	var existing Override
	err := s.db.First(&existing, "cluster_id = ? AND bundle_name = ? AND file_id = ?", clusterID, bundleName, fileID).Error
	if err != nil {
		return "", false
	}
	return existing.State, true
}

func (s *Store) ListOverrides(clusterID, bundleName string) ([]Override, error) {
	var overrides []Override
	err := s.db.Where("cluster_id = ? AND bundle_name = ?", clusterID, bundleName).Find(&overrides).Error
	return overrides, err
}
