package repository

import (
	"fmt"

	"gorm.io/gorm"

	"docuchat/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListByLevels returns all chunks whose parent document sits at one of the
// given confidentiality levels. The level predicate is enforced here, in
// the storage query, so no candidate outside the set ever reaches ranking.
func (r *ChunkRepository) ListByLevels(levels []string) ([]model.DocumentChunk, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	var chunks []model.DocumentChunk
	err := r.db.
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.confidentiality_level IN ?", levels).
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks by levels failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
