package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lms-discussions-api/internal/apperr"
	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/repository"
)

// NewRepositories wires in-memory repositories that share one comment store,
// so cascades and reaction lookups behave like the database.
func NewRepositories() (*repository.Repositories, *MockCommentRepository, *MockReactionRepository, *MockEntityRepository, *MockUploadRepository) {
	comments := NewMockCommentRepository()
	reactions := NewMockReactionRepository(comments)
	comments.reactions = reactions
	entities := NewMockEntityRepository()
	uploads := NewMockUploadRepository()
	return &repository.Repositories{
		Comment:  comments,
		Reaction: reactions,
		Entity:   entities,
		Upload:   uploads,
	}, comments, reactions, entities, uploads
}

// MockCommentRepository is a mock implementation of CommentRepository
type MockCommentRepository struct {
	mu               sync.Mutex
	Comments         map[string]*models.Comment
	order            []string
	reactions        *MockReactionRepository
	InsertError      error
	GetError         error
	BatchInsertFunc  func(ctx context.Context, comments []*models.Comment) (int, error)
	BatchInsertCalls int
}

var _ repository.CommentRepository = (*MockCommentRepository)(nil)

func NewMockCommentRepository() *MockCommentRepository {
	return &MockCommentRepository{
		Comments: make(map[string]*models.Comment),
	}
}

func (m *MockCommentRepository) insert(c *models.Comment) error {
	if _, dup := m.Comments[c.ID]; dup {
		return fmt.Errorf("comment %s: %w", c.ID, apperr.ErrConflict)
	}
	if !c.IsRoot() {
		if _, ok := m.Comments[*c.ParentCommentID]; !ok {
			return fmt.Errorf("parent comment: %w", apperr.ErrNotFound)
		}
	}
	stored := c.Clone()
	m.Comments[c.ID] = &stored
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	return m.insert(comment)
}

func (m *MockCommentRepository) BatchInsert(ctx context.Context, comments []*models.Comment) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	fn := m.BatchInsertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, comments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return 0, m.InsertError
	}
	for _, c := range comments {
		if err := m.insert(c); err != nil {
			return 0, err
		}
	}
	return len(comments), nil
}

func (m *MockCommentRepository) withReactions(c *models.Comment) *models.Comment {
	out := c.Clone()
	out.Reactions = []models.Reaction{}
	if m.reactions != nil {
		if rs := m.reactions.list(c.ID); len(rs) > 0 {
			out.Reactions = rs
		}
	}
	return &out
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	c, ok := m.Comments[id]
	if !ok {
		return nil, nil
	}
	return m.withReactions(c), nil
}

func (m *MockCommentRepository) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.Comments[id]
	return exists, nil
}

func (m *MockCommentRepository) sorted(discussionID string) []*models.Comment {
	out := make([]*models.Comment, 0)
	for _, id := range m.order {
		if c, ok := m.Comments[id]; ok && c.DiscussionID == discussionID {
			out = append(out, c)
		}
	}
	// same order as the SQL: created_at, depth, id
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.ID < b.ID
	})
	return out
}

func (m *MockCommentRepository) ListByDiscussion(ctx context.Context, discussionID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Comment, 0)
	for _, c := range m.sorted(discussionID) {
		out = append(out, *m.withReactions(c))
	}
	return out, nil
}

func (m *MockCommentRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Comments[id]
	if !ok {
		return nil, nil
	}
	c.Content = content
	c.UpdatedAt = at
	c.Edited = true
	return m.withReactions(c), nil
}

// Delete removes the comment and, like ON DELETE CASCADE, its replies and reactions
func (m *MockCommentRepository) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Comments[id]; !ok {
		return false, nil
	}
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for cid, c := range m.Comments {
			if !doomed[cid] && !c.IsRoot() && doomed[*c.ParentCommentID] {
				doomed[cid] = true
				changed = true
			}
		}
	}
	for cid := range doomed {
		delete(m.Comments, cid)
		if m.reactions != nil {
			m.reactions.drop(cid)
		}
	}
	return true, nil
}

func (m *MockCommentRepository) Count(ctx context.Context, discussionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sorted(discussionID)), nil
}

func (m *MockCommentRepository) StreamByDiscussion(ctx context.Context, discussionID string, callback func(*models.Comment) error) error {
	m.mu.Lock()
	list := m.sorted(discussionID)
	copies := make([]*models.Comment, len(list))
	for i, c := range list {
		cc := c.Clone()
		cc.Reactions = []models.Reaction{}
		copies[i] = &cc
	}
	m.mu.Unlock()

	for _, c := range copies {
		if err := callback(c); err != nil {
			return err
		}
	}
	return nil
}

// MockReactionRepository is a mock implementation of ReactionRepository
type MockReactionRepository struct {
	mu               sync.Mutex
	comments         *MockCommentRepository
	Reactions        map[string][]models.Reaction
	AddError         error
	BatchInsertCalls int
}

var _ repository.ReactionRepository = (*MockReactionRepository)(nil)

func NewMockReactionRepository(comments *MockCommentRepository) *MockReactionRepository {
	return &MockReactionRepository{
		comments:  comments,
		Reactions: make(map[string][]models.Reaction),
	}
}

func (m *MockReactionRepository) list(commentID string) []models.Reaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Reaction(nil), m.Reactions[commentID]...)
}

func (m *MockReactionRepository) drop(commentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Reactions, commentID)
}

func (m *MockReactionRepository) Add(ctx context.Context, r *models.Reaction) error {
	if m.AddError != nil {
		return m.AddError
	}
	if m.comments != nil {
		if ok, _ := m.comments.Exists(ctx, r.CommentID); !ok {
			return fmt.Errorf("comment %s: %w", r.CommentID, apperr.ErrNotFound)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Reactions[r.CommentID] {
		if existing.UserID == r.UserID && existing.Type == r.Type {
			return nil
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.Reactions[r.CommentID] = append(m.Reactions[r.CommentID], *r)
	return nil
}

func (m *MockReactionRepository) Remove(ctx context.Context, commentID, userID string, t models.ReactionType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.Reactions[commentID]
	for i, existing := range list {
		if existing.UserID == userID && existing.Type == t {
			m.Reactions[commentID] = append(list[:i:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MockReactionRepository) ListByComment(ctx context.Context, commentID string) ([]models.Reaction, error) {
	out := m.list(commentID)
	if out == nil {
		out = []models.Reaction{}
	}
	return out, nil
}

func (m *MockReactionRepository) ListByComments(ctx context.Context, commentIDs []string) (map[string][]models.Reaction, error) {
	out := make(map[string][]models.Reaction, len(commentIDs))
	for _, id := range commentIDs {
		if rs := m.list(id); len(rs) > 0 {
			out[id] = rs
		}
	}
	return out, nil
}

func (m *MockReactionRepository) BatchInsert(ctx context.Context, reactions []*models.Reaction) (int, error) {
	m.mu.Lock()
	m.BatchInsertCalls++
	m.mu.Unlock()
	for _, r := range reactions {
		if err := m.Add(ctx, r); err != nil {
			return 0, err
		}
	}
	return len(reactions), nil
}

// MockEntityRepository is a mock implementation of EntityRepository
type MockEntityRepository struct {
	mu          sync.Mutex
	Entities    map[string]*models.Entity
	InsertError error
}

var _ repository.EntityRepository = (*MockEntityRepository)(nil)

func NewMockEntityRepository() *MockEntityRepository {
	return &MockEntityRepository{Entities: make(map[string]*models.Entity)}
}

func (m *MockEntityRepository) slugTaken(kind, slug string) bool {
	for _, e := range m.Entities {
		if e.Kind == kind && e.Slug != "" && e.Slug == slug {
			return true
		}
	}
	return false
}

func (m *MockEntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	if entity.Slug != "" && m.slugTaken(entity.Kind, entity.Slug) {
		return fmt.Errorf("%w: %w", apperr.ErrConflict, repository.SlugTaken(entity.Kind, entity.SlugField))
	}
	stored := *entity
	m.Entities[entity.ID] = &stored
	return nil
}

func (m *MockEntityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entities[id], nil
}

func (m *MockEntityRepository) SlugExists(ctx context.Context, kind, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slugTaken(kind, slug), nil
}

func (m *MockEntityRepository) Count(ctx context.Context, kind string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Entities {
		if e.Kind == kind {
			n++
		}
	}
	return n, nil
}

// MockUploadRepository is a mock implementation of UploadRepository
type MockUploadRepository struct {
	mu          sync.Mutex
	Uploads     map[string]*models.Upload
	InsertError error
}

var _ repository.UploadRepository = (*MockUploadRepository)(nil)

func NewMockUploadRepository() *MockUploadRepository {
	return &MockUploadRepository{Uploads: make(map[string]*models.Upload)}
}

func (m *MockUploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertError != nil {
		return m.InsertError
	}
	stored := *upload
	m.Uploads[upload.Key] = &stored
	return nil
}

func (m *MockUploadRepository) GetByKey(ctx context.Context, key string) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Uploads[key], nil
}
