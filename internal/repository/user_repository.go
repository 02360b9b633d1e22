package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aswinmurali/servicehub/internal/utils"
)

// User mirrors the 'users' table of the self-hosted identity provider.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FullName      string
	AvatarURL     string
	EmailVerified bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,full_name,avatar_url,email_verified,is_active,created_at,updated_at"

// Create inserts user and returns its generated subject ID.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, full_name) VALUES (?,?,?,?)",
		id, email, hash, strings.TrimSpace(fullName))
	if err != nil {
		if isDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scan(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (User, error) {
	return r.scan(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword replaces the password hash of a user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) scan(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.AvatarURL,
		&u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}
