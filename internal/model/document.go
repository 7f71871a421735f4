package model

import "time"

// Document is the metadata record for an uploaded file. The
// confidentiality level is fixed at upload time and gates retrieval.
type Document struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Name                 string    `gorm:"size:256;not null" json:"name"`
	ConfidentialityLevel string    `gorm:"size:16;not null;index" json:"confidentiality_level"`
	UploadedBy           string    `gorm:"size:64;not null;index" json:"uploaded_by"`
	UploadedAt           time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
	LastModified         time.Time `gorm:"autoUpdateTime" json:"last_modified"`
}
