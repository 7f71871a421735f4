package app

import (
	"context"
	"errors"
	"strings"

	"docuchat/internal/access"
	"docuchat/internal/model"
	"docuchat/internal/pkg/pdfextract"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/retrieval"
)

var (
	ErrUploadForbidden = errors.New("role may not upload at this confidentiality level")
	ErrDeleteForbidden = errors.New("only the uploader or an admin may delete a document")
	ErrDocumentMissing = errors.New("document not found")
	ErrEmptyDocument   = errors.New("document has no extractable text")
	ErrIngestEnqueue   = errors.New("ingest job enqueue failed")
)

// DocumentMetadata is the metadata storage the document service needs.
type DocumentMetadata interface {
	Create(doc *model.Document) error
	GetByID(id uint) (*model.Document, error)
	ListByLevels(levels []string) ([]model.Document, error)
	Delete(id uint) error
}

// ChunkPurger removes a document's retrieval chunks when the document
// itself is deleted.
type ChunkPurger interface {
	DeleteByDocumentID(documentID uint) error
}

// IngestJobPublisher hands extracted text to the background ingest worker.
type IngestJobPublisher interface {
	Publish(ctx context.Context, job rabbitmq.IngestJob) error
}

type DocumentService struct {
	docs      DocumentMetadata
	chunks    ChunkPurger
	publisher IngestJobPublisher
}

type UploadInput struct {
	Username string
	Role     access.Role
	Filename string
	Level    string
	PDF      []byte
}

func NewDocumentService(docs DocumentMetadata, chunks ChunkPurger, publisher IngestJobPublisher) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks, publisher: publisher}
}

// Upload gates the request on the role's upload permission, records the
// document metadata, and enqueues the extracted text for ingestion.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	username := strings.TrimSpace(input.Username)
	name := strings.TrimSpace(input.Filename)
	if username == "" || name == "" || len(input.PDF) == 0 {
		return nil, ErrInvalidInput
	}

	level, err := access.ParseLevel(input.Level)
	if err != nil {
		return nil, err
	}
	allowed, err := access.CanUpload(input.Role, level)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrUploadForbidden
	}

	text, err := pdfextract.ExtractText(input.PDF)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	doc := &model.Document{
		Name:                 name,
		ConfidentialityLevel: string(level),
		UploadedBy:           username,
	}
	if err := s.docs.Create(doc); err != nil {
		return nil, err
	}

	if s.publisher == nil {
		return nil, ErrIngestEnqueue
	}
	if err := s.publisher.Publish(ctx, rabbitmq.IngestJob{DocumentID: doc.ID, Text: text}); err != nil {
		return nil, ErrIngestEnqueue
	}
	return doc, nil
}

// List returns the documents the role is permitted to see, using the same
// filter construction as retrieval so listing can never show more than
// the retriever would serve.
func (s *DocumentService) List(role access.Role) ([]model.Document, error) {
	filter, err := retrieval.FilterForRole(role)
	if err != nil {
		return nil, err
	}
	return s.docs.ListByLevels(filter.LevelStrings())
}

// Delete removes a document and its retrieval chunks. Only the uploader
// or an admin may delete; either way the caller must also be able to
// read the document's level, so no role can delete what it cannot see.
func (s *DocumentService) Delete(ctx context.Context, username string, role access.Role, documentID uint) error {
	if documentID == 0 {
		return ErrInvalidInput
	}

	doc, err := s.docs.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentMissing
	}

	level, err := access.ParseLevel(doc.ConfidentialityLevel)
	if err != nil {
		return err
	}
	readable, err := access.CanRead(role, level)
	if err != nil {
		return err
	}
	if !readable {
		// Out-of-policy documents look like they do not exist.
		return ErrDocumentMissing
	}
	if doc.UploadedBy != username && role != access.RoleAdmin {
		return ErrDeleteForbidden
	}

	if err := s.chunks.DeleteByDocumentID(documentID); err != nil {
		return err
	}
	return s.docs.Delete(documentID)
}
