package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"field-service/internal/model"
)

// DocumentRepository stores opaque JSON documents by key.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Get returns the raw document stored under key. The boolean is false when
// nothing is stored there.
func (r *DocumentRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("doc_key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(doc.Value), true, nil
}

func (r *DocumentRepository) Put(ctx context.Context, key string, value []byte) error {
	doc := model.Document{Key: key, Value: datatypes.JSON(value)}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doc_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
}

func (r *DocumentRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("doc_key = ?", key).Delete(&model.Document{}).Error
}

// Transaction runs fn against a repository bound to a single transaction.
func (r *DocumentRepository) Transaction(ctx context.Context, fn func(tx *DocumentRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DocumentRepository{db: tx})
	})
}
