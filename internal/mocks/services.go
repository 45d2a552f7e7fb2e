package mocks

import (
	"context"
	"io"
	"net/http"

	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/service"
)

// MockCommentService is a mock implementation of CommentService
type MockCommentService struct {
	ListFunc   func(ctx context.Context, discussionID string) ([]models.Comment, error)
	CreateFunc func(ctx context.Context, discussionID, authorID string, in models.NewComment) (*models.Comment, error)
	UpdateFunc func(ctx context.Context, commentID, userID string, in models.CommentUpdate) (*models.Comment, error)
	DeleteFunc func(ctx context.Context, commentID, userID string) error
	Deleted    []string
}

// Verify interface compliance
var _ service.CommentService = (*MockCommentService)(nil)

func (m *MockCommentService) List(ctx context.Context, discussionID string) ([]models.Comment, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, discussionID)
	}
	return []models.Comment{}, nil
}

func (m *MockCommentService) Create(ctx context.Context, discussionID, authorID string, in models.NewComment) (*models.Comment, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, discussionID, authorID, in)
	}
	return &models.Comment{ID: "c-new", DiscussionID: discussionID, AuthorID: authorID, Content: in.Content, ParentCommentID: in.ParentCommentID}, nil
}

func (m *MockCommentService) Update(ctx context.Context, commentID, userID string, in models.CommentUpdate) (*models.Comment, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, commentID, userID, in)
	}
	return &models.Comment{ID: commentID, AuthorID: userID, Content: in.Content, Edited: true}, nil
}

func (m *MockCommentService) Delete(ctx context.Context, commentID, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, commentID, userID)
	}
	m.Deleted = append(m.Deleted, commentID)
	return nil
}

// MockReactionService is a mock implementation of ReactionService
type MockReactionService struct {
	AddFunc    func(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error)
	RemoveFunc func(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error)
}

var _ service.ReactionService = (*MockReactionService)(nil)

func (m *MockReactionService) Add(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, commentID, userID, t)
	}
	return []models.Reaction{{UserID: userID, Type: t}}, nil
}

func (m *MockReactionService) Remove(ctx context.Context, commentID, userID string, t models.ReactionType) ([]models.Reaction, error) {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, commentID, userID, t)
	}
	return []models.Reaction{}, nil
}

// MockFormService is a mock implementation of FormService
type MockFormService struct {
	ValidateFunc func(ctx context.Context, schemaName string, fields map[string]string) ([]models.FormFieldError, error)
	SubmitFunc   func(ctx context.Context, schemaName, userID string, fields map[string]string) (*models.Entity, error)
}

var _ service.FormService = (*MockFormService)(nil)

func (m *MockFormService) Validate(ctx context.Context, schemaName string, fields map[string]string) ([]models.FormFieldError, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, schemaName, fields)
	}
	return []models.FormFieldError{}, nil
}

func (m *MockFormService) Submit(ctx context.Context, schemaName, userID string, fields map[string]string) (*models.Entity, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, schemaName, userID, fields)
	}
	return &models.Entity{ID: "e-new", Kind: schemaName, Fields: fields, CreatedBy: userID}, nil
}

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	SaveFunc func(ctx context.Context, in service.UploadInput) (*models.UploadResult, error)
	Received []byte
}

var _ service.UploadService = (*MockUploadService)(nil)

func (m *MockUploadService) Save(ctx context.Context, in service.UploadInput) (*models.UploadResult, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, in)
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.Received = data
	key := string(in.Kind) + "/" + in.Filename
	return &models.UploadResult{URL: "/files/" + key, Key: key, Size: int64(len(data))}, nil
}

// MockExportService is a mock implementation of ExportService
type MockExportService struct {
	StreamFunc func(ctx context.Context, w http.ResponseWriter, discussionID, format string) error
	Counts     map[string]int
}

var _ service.ExportService = (*MockExportService)(nil)

func NewMockExportService() *MockExportService {
	return &MockExportService{Counts: make(map[string]int)}
}

func (m *MockExportService) StreamDiscussion(ctx context.Context, w http.ResponseWriter, discussionID, format string) error {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, w, discussionID, format)
	}
	return nil
}

func (m *MockExportService) Count(ctx context.Context, discussionID string) (int, error) {
	return m.Counts[discussionID], nil
}

// MockImportService is a mock implementation of ImportService
type MockImportService struct {
	ImportFunc func(ctx context.Context, discussionID string, r io.Reader) (*models.ImportResult, error)
}

var _ service.ImportService = (*MockImportService)(nil)

func (m *MockImportService) ImportThread(ctx context.Context, discussionID string, r io.Reader) (*models.ImportResult, error) {
	if m.ImportFunc != nil {
		return m.ImportFunc(ctx, discussionID, r)
	}
	return &models.ImportResult{DiscussionID: discussionID, Errors: []models.ImportError{}}, nil
}

// NewServices returns mock services with default behavior
func NewServices() *service.Services {
	return &service.Services{
		Comment:  &MockCommentService{},
		Reaction: &MockReactionService{},
		Form:     &MockFormService{},
		Upload:   &MockUploadService{},
		Export:   NewMockExportService(),
		Import:   &MockImportService{},
	}
}
