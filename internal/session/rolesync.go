package session

import (
	"context"
	"errors"

	"github.com/aswinmurali/servicehub/internal/events"
	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/repository"
)

// RoleStore is the backend-held mapping from subject to role record.
type RoleStore interface {
	FindBySubject(ctx context.Context, subjectID string) (*model.RoleRecord, error)
	Insert(ctx context.Context, rec model.RoleRecord) (*model.RoleRecord, error)
	Update(ctx context.Context, subjectID string, u model.RoleUpdate) (*model.RoleRecord, error)
	Upsert(ctx context.Context, rec model.RoleRecord, conflictKey string) (*model.RoleRecord, error)
	FindProfile(ctx context.Context, subjectID string) (*model.Profile, error)
	SaveProfile(ctx context.Context, p model.Profile) error
	FindRoleDetails(ctx context.Context, subjectID string, role model.Role) (map[string]any, error)
}

// SyncResult is the outcome of the read-or-create role sequence.  Role is
// always a member of the enumeration.  Degraded means the role was not
// confirmed by the role store and is the caller's hint.
type SyncResult struct {
	Role          model.Role
	IsNew         bool
	Degraded      bool
	DashboardPath string
}

// syncRole makes sure subj has exactly one role record and returns its
// role.  Store failures never fail the call; they yield a degraded result
// carrying hint.
func (m *Manager) syncRole(ctx context.Context, subj *model.Subject, hint model.Role) SyncResult {
	if !hint.Valid() {
		hint = model.DefaultRole
	}
	if subj == nil || subj.ID == "" {
		return m.degraded(ctx, "", hint, errors.New("no subject"))
	}

	rec, err := m.roles.FindBySubject(ctx, subj.ID)
	switch {
	case err == nil && rec != nil && rec.Role != "":
		role, ok := model.ParseRole(rec.Role)
		if !ok {
			return m.degraded(ctx, subj.ID, hint, errors.New("unrecognized stored role "+rec.Role))
		}
		m.touch(ctx, subj)
		return SyncResult{Role: role, DashboardPath: model.DashboardFor(role)}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return m.degraded(ctx, subj.ID, hint, err)
	}

	now := m.now().UTC()
	fresh := model.RoleRecord{
		SubjectID:     subj.ID,
		Role:          string(hint),
		Status:        model.StatusActive,
		EmailVerified: subj.EmailVerified,
		LastLogin:     &now,
		FullName:      subj.Name,
		AvatarURL:     subj.AvatarURL,
	}
	created, err := m.roles.Insert(ctx, fresh)
	if err == nil {
		return resultFrom(created, hint, true)
	}
	m.logger.Info("role insert failed, trying upsert", "subject", subj.ID, "err", err)

	up, err := m.roles.Upsert(ctx, fresh, "subject_id")
	if err == nil {
		return resultFrom(up, hint, false)
	}
	return m.degraded(ctx, subj.ID, hint, err)
}

// touch refreshes last-login and display metadata.  Failures are logged.
func (m *Manager) touch(ctx context.Context, subj *model.Subject) {
	now := m.now().UTC()
	u := model.RoleUpdate{LastLogin: &now}
	if subj.Name != "" {
		u.FullName = &subj.Name
	}
	if subj.AvatarURL != "" {
		u.AvatarURL = &subj.AvatarURL
	}
	if subj.EmailVerified {
		v := true
		u.EmailVerified = &v
	}
	if _, err := m.roles.Update(ctx, subj.ID, u); err != nil {
		m.logger.Warn("last login update failed", "subject", subj.ID, "err", err)
	}
}

func (m *Manager) degraded(ctx context.Context, subjectID string, hint model.Role, cause error) SyncResult {
	m.logger.WarnContext(ctx, "role sync degraded", "subject", subjectID, "role", hint, "degraded", true, "err", cause)
	m.bus.Publish(events.Event{
		Topic:     events.TopicProfileDegraded,
		SubjectID: subjectID,
		Role:      string(hint),
		Detail:    cause.Error(),
	})
	return SyncResult{Role: hint, Degraded: true, DashboardPath: model.DashboardFor(hint)}
}

func resultFrom(rec *model.RoleRecord, hint model.Role, isNew bool) SyncResult {
	role := hint
	if rec != nil {
		if r, ok := model.ParseRole(rec.Role); ok {
			role = r
		}
	}
	return SyncResult{Role: role, IsNew: isNew, DashboardPath: model.DashboardFor(role)}
}

// clampHint turns a caller-supplied role hint into a self-service role.
// Elevated roles are never granted from a sign-in form.
func clampHint(s string) model.Role {
	r, ok := model.ParseRole(s)
	if !ok || !r.SelfService() {
		return model.DefaultRole
	}
	return r
}
