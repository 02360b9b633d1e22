package handler

import (
    "context"

    "github.com/aswinmurali/servicehub/internal/identity"
    "github.com/aswinmurali/servicehub/internal/model"
    "github.com/aswinmurali/servicehub/internal/nav"
    "github.com/aswinmurali/servicehub/internal/session"
)

// Sessions is the part of *session.Manager the handlers call.
type Sessions interface {
    State() session.State
    Login(ctx context.Context, cred model.Credentials) model.LoginResult
    Register(ctx context.Context, data model.RegisterData) model.RegisterResult
    SignInWithExternalProvider(ctx context.Context) (model.ExternalSignIn, error)
    FinalizeExternalAuth(ctx context.Context, cb identity.Callback) model.FinalizeResult
    RequestPasswordReset(ctx context.Context, email string) model.Result
    UpdatePassword(ctx context.Context, newPassword string) model.Result
    Logout(ctx context.Context, n nav.Navigator)
    RefreshSession(ctx context.Context) bool
    GetRole(ctx context.Context) (model.Role, bool)
    GetCompleteProfile(ctx context.Context) (*model.CompleteProfile, bool)
}

var _ Sessions = (*session.Manager)(nil)
