package session

import (
	"context"
	"slices"
	"sync"

	"github.com/aswinmurali/servicehub/internal/identity"
	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/repository"
)

type fakeProvider struct {
	mu          sync.Mutex
	session     *model.Session
	sessionErr  error
	loginErr    error
	createErr   error
	completeErr error
	refreshErr  error
	revoked     int
	completed   []identity.Callback
	external    *model.Subject
	handlers    []func(identity.Event)
}

var _ identity.Provider = (*fakeProvider)(nil)

func (f *fakeProvider) emit(ev identity.Event) {
	f.mu.Lock()
	hs := slices.Clone(f.handlers)
	f.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h(ev)
		}
	}
}

func (f *fakeProvider) signIn(s *model.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.emit(identity.Event{Kind: identity.EventSignedIn, Session: s})
}

func (f *fakeProvider) GetCurrentSession(context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeProvider) ExchangeCredentials(_ context.Context, email, _ string) (*model.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	s := &model.Session{SubjectID: "sub-" + email, Email: email}
	f.signIn(s)
	return s, nil
}

func (f *fakeProvider) CreateAccount(_ context.Context, email, _ string, meta map[string]string) (*model.Subject, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.signIn(&model.Session{SubjectID: "sub-" + email, Email: email, Name: meta["full_name"]})
	return &model.Subject{ID: "sub-" + email, Email: email}, nil
}

func (f *fakeProvider) BeginExternalSignIn(_ context.Context, target string) (string, error) {
	return "https://idp.test/authorize?redirect_to=" + target, nil
}

func (f *fakeProvider) CompleteExternalSignIn(_ context.Context, cb identity.Callback) error {
	f.mu.Lock()
	f.completed = append(f.completed, cb)
	subj := f.external
	f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.signIn(&model.Session{SubjectID: subj.ID, Email: subj.Email})
	return nil
}

func (f *fakeProvider) GetCurrentSubject(context.Context) (*model.Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, identity.ErrNoSession
	}
	return &model.Subject{ID: f.session.SubjectID, Email: f.session.Email, Name: f.session.Name}, nil
}

func (f *fakeProvider) RevokeSession(context.Context) error {
	f.mu.Lock()
	f.revoked++
	had := f.session != nil
	f.session = nil
	f.mu.Unlock()
	if had {
		f.emit(identity.Event{Kind: identity.EventSignedOut})
	}
	return nil
}

func (f *fakeProvider) RefreshToken(context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.session == nil {
		return nil, identity.ErrNoSession
	}
	return f.session, nil
}

func (f *fakeProvider) SubscribeToSessionChanges(h func(identity.Event)) func() {
	f.mu.Lock()
	i := len(f.handlers)
	f.handlers = append(f.handlers, h)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handlers[i] = nil
		f.mu.Unlock()
	}
}

func (f *fakeProvider) RequestPasswordReset(context.Context, string, string) error { return nil }

func (f *fakeProvider) UpdatePassword(context.Context, string) error { return nil }

type memRoles struct {
	mu        sync.Mutex
	recs      map[string]model.RoleRecord
	profiles  map[string]model.Profile
	details   map[string]map[string]any
	findErr   error
	saveErr   error
	insertErr error
	upsertErr error
	updateErr error
	finds     int
	inserts   int
	upserts   int
	updates   int
}

var _ RoleStore = (*memRoles)(nil)

func newMemRoles() *memRoles {
	return &memRoles{
		recs:     map[string]model.RoleRecord{},
		profiles: map[string]model.Profile{},
		details:  map[string]map[string]any{},
	}
}

func (m *memRoles) put(id string, role model.Role) {
	m.mu.Lock()
	m.recs[id] = model.RoleRecord{SubjectID: id, Role: string(role), Status: model.StatusActive}
	m.mu.Unlock()
}

func (m *memRoles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func (m *memRoles) FindBySubject(_ context.Context, id string) (*model.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memRoles) Insert(_ context.Context, rec model.RoleRecord) (*model.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	if _, ok := m.recs[rec.SubjectID]; ok {
		return nil, repository.ErrDuplicate
	}
	m.recs[rec.SubjectID] = rec
	return &rec, nil
}

func (m *memRoles) Update(_ context.Context, id string, u model.RoleUpdate) (*model.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	r, ok := m.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.LastLogin != nil {
		r.LastLogin = u.LastLogin
	}
	if u.FullName != nil {
		r.FullName = *u.FullName
	}
	m.recs[id] = r
	return &r, nil
}

func (m *memRoles) Upsert(_ context.Context, rec model.RoleRecord, key string) (*model.RoleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	if key != "subject_id" {
		return nil, repository.ErrConflictKey
	}
	if cur, ok := m.recs[rec.SubjectID]; ok && cur.Role != "" {
		rec.Role = cur.Role
	}
	m.recs[rec.SubjectID] = rec
	return &rec, nil
}

func (m *memRoles) FindProfile(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memRoles) SaveProfile(_ context.Context, p model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profiles[p.SubjectID] = p
	return nil
}

func (m *memRoles) FindRoleDetails(_ context.Context, id string, _ model.Role) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.details[id]; ok {
		return d, nil
	}
	return map[string]any{}, nil
}
