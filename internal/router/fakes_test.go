package router

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/repository"
    "github.com/aswinmurali/servicehub/internal/utils"
)

type memUsers struct {
    mu    sync.Mutex
    byID  map[string]repository.User
    email map[string]string
}

func newMemUsers() *memUsers {
    return &memUsers{byID: map[string]repository.User{}, email: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, email, password, fullName string, cost int) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.email[email]; ok {
        return "", repository.ErrEmailExists
    }
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return "", err
    }
    id := uuid.NewString()
    m.byID[id] = repository.User{ID: id, Email: email, PasswordHash: hash, FullName: fullName, IsActive: true}
    m.email[email] = id
    return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (repository.User, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.email[email]
    if !ok {
        return repository.User{}, repository.ErrNotFound
    }
    return m.byID[id], nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (repository.User, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    u, ok := m.byID[id]
    if !ok {
        return repository.User{}, repository.ErrNotFound
    }
    return u, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, password string, cost int) error {
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return err
    }
    m.mu.Lock()
    defer m.mu.Unlock()
    u := m.byID[id]
    u.PasswordHash = hash
    m.byID[id] = u
    return nil
}

type memTokens struct {
    mu      sync.Mutex
    refresh map[string]string
    reset   map[string]string
}

func newMemTokens() *memTokens {
    return &memTokens{refresh: map[string]string{}, reset: map[string]string{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID, hash string, _ time.Time) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.refresh[hash] = userID
    return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.refresh[hash]
    if !ok {
        return "", repository.ErrNotFound
    }
    return id, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    delete(m.refresh, hash)
    return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for h, id := range m.refresh {
        if id == userID {
            delete(m.refresh, h)
        }
    }
    return nil
}

func (m *memTokens) StoreReset(_ context.Context, userID, hash string, _ time.Time) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    m.reset[hash] = userID
    return nil
}

func (m *memTokens) ConsumeReset(_ context.Context, hash string) (string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    id, ok := m.reset[hash]
    if !ok {
        return "", repository.ErrNotFound
    }
    delete(m.reset, hash)
    return id, nil
}

type memRoles struct {
    mu       sync.Mutex
    recs     map[string]model.RoleRecord
    profiles map[string]model.Profile
}

func newMemRoles() *memRoles {
    return &memRoles{recs: map[string]model.RoleRecord{}, profiles: map[string]model.Profile{}}
}

func (m *memRoles) FindBySubject(_ context.Context, id string) (*model.RoleRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    r, ok := m.recs[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return &r, nil
}

func (m *memRoles) Insert(_ context.Context, rec model.RoleRecord) (*model.RoleRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if _, ok := m.recs[rec.SubjectID]; ok {
        return nil, repository.ErrDuplicate
    }
    m.recs[rec.SubjectID] = rec
    return &rec, nil
}

func (m *memRoles) Update(_ context.Context, id string, _ model.RoleUpdate) (*model.RoleRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    r, ok := m.recs[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return &r, nil
}

func (m *memRoles) Upsert(_ context.Context, rec model.RoleRecord, _ string) (*model.RoleRecord, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
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
    m.profiles[p.SubjectID] = p
    return nil
}

func (m *memRoles) FindRoleDetails(context.Context, string, model.Role) (map[string]any, error) {
    return map[string]any{}, nil
}
