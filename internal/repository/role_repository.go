package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aswinmurali/servicehub/internal/model"
)

// RoleRepo is the role store: one user_roles row per subject plus the
// profile and role-detail rows read by the complete-profile view.
type RoleRepo struct{ db *sql.DB }

// NewRoleRepo returns a RoleRepo bound to db.
func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

const roleColumns = "subject_id,role,status,email_verified,last_login,full_name,avatar_url,created_at,updated_at"

func scanRole(row interface{ Scan(...any) error }) (*model.RoleRecord, error) {
	var (
		rec       model.RoleRecord
		lastLogin sql.NullTime
	)
	err := row.Scan(&rec.SubjectID, &rec.Role, &rec.Status, &rec.EmailVerified, &lastLogin,
		&rec.FullName, &rec.AvatarURL, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		rec.LastLogin = &t
	}
	return &rec, nil
}

// FindBySubject returns the role record of a subject or ErrNotFound.
func (r *RoleRepo) FindBySubject(ctx context.Context, subjectID string) (*model.RoleRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM user_roles WHERE subject_id=? LIMIT 1", subjectID)
	return scanRole(row)
}

// Insert creates the record.  A second insert for the same subject fails
// with ErrDuplicate.
func (r *RoleRepo) Insert(ctx context.Context, rec model.RoleRecord) (*model.RoleRecord, error) {
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (subject_id, role, status, email_verified, last_login, full_name, avatar_url)
		 VALUES (?,?,?,?,?,?,?)`,
		rec.SubjectID, rec.Role, rec.Status, rec.EmailVerified, nullTime(rec.LastLogin), rec.FullName, rec.AvatarURL)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r.FindBySubject(ctx, rec.SubjectID)
}

// Update changes the non-nil fields of u and returns the stored record.
func (r *RoleRepo) Update(ctx context.Context, subjectID string, u model.RoleUpdate) (*model.RoleRecord, error) {
	if u.Empty() {
		return r.FindBySubject(ctx, subjectID)
	}
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if u.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, *u.Role)
	}
	if u.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, *u.Status)
	}
	if u.EmailVerified != nil {
		sets = append(sets, "email_verified=?")
		args = append(args, *u.EmailVerified)
	}
	if u.LastLogin != nil {
		sets = append(sets, "last_login=?")
		args = append(args, u.LastLogin.UTC())
	}
	if u.FullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *u.FullName)
	}
	if u.AvatarURL != nil {
		sets = append(sets, "avatar_url=?")
		args = append(args, *u.AvatarURL)
	}
	args = append(args, subjectID)
	if _, err := r.db.ExecContext(ctx,
		"UPDATE user_roles SET "+strings.Join(sets, ",")+" WHERE subject_id=?", args...); err != nil {
		return nil, err
	}
	return r.FindBySubject(ctx, subjectID)
}

// Upsert inserts rec or, when a row for the subject exists, refreshes its
// sign-in metadata.  An existing non-empty role is never overwritten so a
// racing first sign-in cannot demote an assigned role.  Only subject_id
// is accepted as the conflict key.
func (r *RoleRepo) Upsert(ctx context.Context, rec model.RoleRecord, conflictKey string) (*model.RoleRecord, error) {
	if conflictKey != "subject_id" {
		return nil, ErrConflictKey
	}
	if rec.Status == "" {
		rec.Status = model.StatusActive
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (subject_id, role, status, email_verified, last_login, full_name, avatar_url)
		 VALUES (?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   role = IF(role = '', VALUES(role), role),
		   last_login = VALUES(last_login),
		   full_name = IF(VALUES(full_name) = '', full_name, VALUES(full_name)),
		   avatar_url = IF(VALUES(avatar_url) = '', avatar_url, VALUES(avatar_url))`,
		rec.SubjectID, rec.Role, rec.Status, rec.EmailVerified, nullTime(rec.LastLogin), rec.FullName, rec.AvatarURL)
	if err != nil {
		return nil, err
	}
	return r.FindBySubject(ctx, rec.SubjectID)
}

// FindProfile returns the profile row of a subject or ErrNotFound.
func (r *RoleRepo) FindProfile(ctx context.Context, subjectID string) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRowContext(ctx,
		"SELECT subject_id,full_name,phone,avatar_url,address,updated_at FROM user_profiles WHERE subject_id=? LIMIT 1",
		subjectID).Scan(&p.SubjectID, &p.FullName, &p.Phone, &p.AvatarURL, &p.Address, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SaveProfile creates or refreshes the profile row of a subject.  Empty
// fields never overwrite stored values.
func (r *RoleRepo) SaveProfile(ctx context.Context, p model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (subject_id, full_name, phone, avatar_url, address)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   full_name = IF(VALUES(full_name) = '', full_name, VALUES(full_name)),
		   phone = IF(VALUES(phone) = '', phone, VALUES(phone)),
		   avatar_url = IF(VALUES(avatar_url) = '', avatar_url, VALUES(avatar_url)),
		   address = IF(VALUES(address) = '', address, VALUES(address))`,
		p.SubjectID, p.FullName, p.Phone, p.AvatarURL, p.Address)
	return err
}

// FindRoleDetails returns the role-specific detail document of a subject
// (vehicle data for drivers, service area for providers, ...).  A subject
// without details yields an empty map.
func (r *RoleRepo) FindRoleDetails(ctx context.Context, subjectID string, role model.Role) (map[string]any, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT details FROM role_details WHERE subject_id=? AND role=? LIMIT 1",
		subjectID, string(role)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	out := map[string]any{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
