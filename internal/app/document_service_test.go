package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/access"
	"docuchat/internal/model"
	"docuchat/internal/platform/rabbitmq"
)

type fakeDocumentMetadata struct {
	created    []*model.Document
	docs       []model.Document
	lastLevels []string
}

func (f *fakeDocumentMetadata) Create(doc *model.Document) error {
	doc.ID = uint(len(f.created) + 1)
	f.created = append(f.created, doc)
	return nil
}

func (f *fakeDocumentMetadata) GetByID(id uint) (*model.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			copied := d
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentMetadata) ListByLevels(levels []string) ([]model.Document, error) {
	f.lastLevels = levels
	var out []model.Document
	for _, d := range f.docs {
		for _, l := range levels {
			if d.ConfidentialityLevel == l {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDocumentMetadata) Delete(id uint) error {
	for i, d := range f.docs {
		if d.ID == id {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

type fakeChunkPurger struct {
	purged []uint
}

func (f *fakeChunkPurger) DeleteByDocumentID(documentID uint) error {
	f.purged = append(f.purged, documentID)
	return nil
}

type fakePublisher struct {
	jobs []rabbitmq.IngestJob
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, job rabbitmq.IngestJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func TestUploadPermissionMatrix(t *testing.T) {
	tests := []struct {
		role  access.Role
		level string
		want  error
	}{
		{access.RoleBackendTeam, "Medium", ErrUploadForbidden},
		{access.RoleBackendTeam, "High", ErrUploadForbidden},
		{access.RoleAITeam, "High", ErrUploadForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.level, func(t *testing.T) {
			svc := NewDocumentService(&fakeDocumentMetadata{}, &fakeChunkPurger{}, &fakePublisher{})
			_, err := svc.Upload(context.Background(), UploadInput{
				Username: "alice",
				Role:     tt.role,
				Filename: "doc.pdf",
				Level:    tt.level,
				PDF:      []byte("%PDF-1.4 stub"),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUploadInvalidLevel(t *testing.T) {
	svc := NewDocumentService(&fakeDocumentMetadata{}, &fakeChunkPurger{}, &fakePublisher{})

	_, err := svc.Upload(context.Background(), UploadInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Filename: "doc.pdf",
		Level:    "Top Secret",
		PDF:      []byte("%PDF-1.4 stub"),
	})
	assert.ErrorIs(t, err, access.ErrInvalidLevel)
}

func TestUploadInvalidRole(t *testing.T) {
	svc := NewDocumentService(&fakeDocumentMetadata{}, &fakeChunkPurger{}, &fakePublisher{})

	_, err := svc.Upload(context.Background(), UploadInput{
		Username: "alice",
		Role:     access.Role("Intern"),
		Filename: "doc.pdf",
		Level:    "Low",
		PDF:      []byte("%PDF-1.4 stub"),
	})
	assert.ErrorIs(t, err, access.ErrInvalidRole)
}

func TestUploadMissingFields(t *testing.T) {
	svc := NewDocumentService(&fakeDocumentMetadata{}, &fakeChunkPurger{}, &fakePublisher{})

	_, err := svc.Upload(context.Background(), UploadInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Filename: "",
		Level:    "Low",
		PDF:      []byte("x"),
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(context.Background(), UploadInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Filename: "doc.pdf",
		Level:    "Low",
		PDF:      nil,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadMalformedPDF(t *testing.T) {
	docs := &fakeDocumentMetadata{}
	svc := NewDocumentService(docs, &fakeChunkPurger{}, &fakePublisher{})

	// The permission gate passes but the bytes are not a parseable PDF.
	_, err := svc.Upload(context.Background(), UploadInput{
		Username: "alice",
		Role:     access.RoleAdmin,
		Filename: "doc.pdf",
		Level:    "High",
		PDF:      []byte("definitely not a pdf"),
	})
	require.Error(t, err)
	assert.Empty(t, docs.created)
}

func TestListIsRoleFiltered(t *testing.T) {
	docs := &fakeDocumentMetadata{docs: []model.Document{
		{ID: 1, Name: "handbook.pdf", ConfidentialityLevel: "Low"},
		{ID: 2, Name: "roadmap.pdf", ConfidentialityLevel: "Medium"},
		{ID: 3, Name: "salaries.pdf", ConfidentialityLevel: "High"},
	}}
	svc := NewDocumentService(docs, &fakeChunkPurger{}, &fakePublisher{})

	visible, err := svc.List(access.RoleAITeam)
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, []string{"Low", "Medium"}, docs.lastLevels)

	visible, err = svc.List(access.RoleBackendTeam)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "handbook.pdf", visible[0].Name)

	_, err = svc.List(access.Role("Intern"))
	assert.ErrorIs(t, err, access.ErrInvalidRole)
}

func TestDeleteByUploader(t *testing.T) {
	docs := &fakeDocumentMetadata{docs: []model.Document{
		{ID: 1, Name: "handbook.pdf", ConfidentialityLevel: "Low", UploadedBy: "alice"},
	}}
	purger := &fakeChunkPurger{}
	svc := NewDocumentService(docs, purger, &fakePublisher{})

	require.NoError(t, svc.Delete(context.Background(), "alice", access.RoleBackendTeam, 1))
	assert.Equal(t, []uint{1}, purger.purged)
	assert.Empty(t, docs.docs)
}

func TestDeleteByAdmin(t *testing.T) {
	docs := &fakeDocumentMetadata{docs: []model.Document{
		{ID: 2, Name: "roadmap.pdf", ConfidentialityLevel: "Medium", UploadedBy: "alice"},
	}}
	svc := NewDocumentService(docs, &fakeChunkPurger{}, &fakePublisher{})

	require.NoError(t, svc.Delete(context.Background(), "root", access.RoleAdmin, 2))
	assert.Empty(t, docs.docs)
}

func TestDeleteForbiddenForOtherUsers(t *testing.T) {
	docs := &fakeDocumentMetadata{docs: []model.Document{
		{ID: 3, Name: "notes.pdf", ConfidentialityLevel: "Low", UploadedBy: "alice"},
	}}
	svc := NewDocumentService(docs, &fakeChunkPurger{}, &fakePublisher{})

	err := svc.Delete(context.Background(), "bob", access.RoleBackendTeam, 3)
	assert.ErrorIs(t, err, ErrDeleteForbidden)
	assert.Len(t, docs.docs, 1)
}

func TestDeleteOutOfPolicyLooksMissing(t *testing.T) {
	docs := &fakeDocumentMetadata{docs: []model.Document{
		{ID: 4, Name: "salaries.pdf", ConfidentialityLevel: "High", UploadedBy: "root"},
	}}
	svc := NewDocumentService(docs, &fakeChunkPurger{}, &fakePublisher{})

	// A document above the caller's level is indistinguishable from a
	// missing one, even for its uploader's teammates.
	err := svc.Delete(context.Background(), "bob", access.RoleBackendTeam, 4)
	assert.ErrorIs(t, err, ErrDocumentMissing)
}

func TestDeleteUnknownDocument(t *testing.T) {
	svc := NewDocumentService(&fakeDocumentMetadata{}, &fakeChunkPurger{}, &fakePublisher{})

	err := svc.Delete(context.Background(), "alice", access.RoleAdmin, 99)
	assert.ErrorIs(t, err, ErrDocumentMissing)
}
