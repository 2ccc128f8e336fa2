package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/jsonstore"
)

const usersCollection = "users"

// FileRepository stores users in the flat-file JSON store.
type FileRepository struct {
	store *jsonstore.Store
}

// NewFileRepository creates a file-backed user repository.
func NewFileRepository(store *jsonstore.Store) *FileRepository {
	return &FileRepository{store: store}
}

// Create inserts a new user, assigning a fresh UUID.
func (r *FileRepository) Create(ctx context.Context, u *models.User) error {
	u.ID = uuid.New()
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	return jsonstore.Append(r.store, usersCollection, fileUser{
		ID:        u.ID,
		Email:     u.Email,
		Password:  u.Password,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
}

// GetByEmail returns a user by email (case-insensitive).
func (r *FileRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	rec, ok, err := jsonstore.FindBy(r.store, usersCollection, func(u fileUser) bool {
		return strings.EqualFold(u.Email, email)
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return &models.User{
		ID:        rec.ID,
		Email:     rec.Email,
		Password:  rec.Password,
		FullName:  rec.FullName,
		Role:      rec.Role,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// fileUser is the on-disk user shape; unlike models.User it persists the
// password hash.
type fileUser struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Password  string      `json:"password_hash"`
	FullName  string      `json:"full_name"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
