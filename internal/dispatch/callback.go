package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aswinmurali/servicehub/internal/identity"
	"github.com/aswinmurali/servicehub/internal/model"
	"github.com/aswinmurali/servicehub/internal/nav"
	"github.com/aswinmurali/servicehub/internal/session"
)

// Branch names the path CompleteExternalSignIn took.
type Branch string

const (
	BranchNew      Branch = "new"
	BranchExisting Branch = "existing"
	BranchRecovery Branch = "recovery"
	// BranchFallback is a failed finalization with a usable session.
	BranchFallback Branch = "fallback"
	BranchFailed   Branch = "failed"
)

// Completion reports the branch taken and the single navigation issued.
type Completion struct {
	Branch Branch
	Path   string
	Result model.FinalizeResult
}

// Finalizer is the view of the session manager the completion handler
// needs.
type Finalizer interface {
	State() session.State
	FinalizeExternalAuth(ctx context.Context, cb identity.Callback) model.FinalizeResult
}

// CompleteExternalSignIn finishes a redirect-based sign-in and issues
// exactly one navigation on every path, panics included.
func CompleteExternalSignIn(ctx context.Context, f Finalizer, cb identity.Callback, notices session.Notifier, n nav.Navigator, logger *slog.Logger) (out Completion) {
	if logger == nil {
		logger = slog.Default()
	}
	if notices == nil {
		notices = &session.Notices{}
	}
	o := &onceNav{next: n}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("external sign-in completion panicked", "panic", fmt.Sprint(r))
			out = fail(f, model.FinalizeResult{Error: "Sign-in could not be completed"}, notices, o)
		}
		if !o.done() {
			out = fail(f, out.Result, notices, o)
		}
	}()

	res := f.FinalizeExternalAuth(ctx, cb)
	if !res.Success {
		logger.Warn("external sign-in failed", "err", res.Error)
		return fail(f, res, notices, o)
	}

	switch {
	case res.Recovery:
		notices.Notify(session.Notice{Level: session.LevelInfo, Message: "Choose a new password"})
		o.Navigate(model.ProfilePath, nav.Options{Replace: true})
		return Completion{Branch: BranchRecovery, Path: model.ProfilePath, Result: res}
	case res.IsNew:
		path := model.DashboardFor(model.DefaultRole)
		notices.Notify(session.Notice{Level: session.LevelSuccess, Message: "Welcome! Your account is ready."})
		o.Navigate(path, nav.Options{Replace: true})
		return Completion{Branch: BranchNew, Path: path, Result: res}
	default:
		path := res.DashboardPath
		if path == "" {
			path = model.DashboardFor(res.Role)
		}
		notices.Notify(session.Notice{Level: session.LevelSuccess, Message: "Welcome back!"})
		o.Navigate(path, nav.Options{Replace: true})
		return Completion{Branch: BranchExisting, Path: path, Result: res}
	}
}

func fail(f Finalizer, res model.FinalizeResult, notices session.Notifier, o *onceNav) Completion {
	authenticated := func() (ok bool) {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		return f.State().Authenticated()
	}()
	if authenticated {
		path := model.DashboardFor(model.DefaultRole)
		o.Navigate(path, nav.Options{Replace: true})
		return Completion{Branch: BranchFallback, Path: path, Result: res}
	}
	msg := res.Error
	if msg == "" {
		msg = "Sign-in could not be completed"
	}
	notices.Notify(session.Notice{Level: session.LevelError, Message: msg})
	o.Navigate(model.SignInPath, nav.Options{Replace: true})
	return Completion{Branch: BranchFailed, Path: model.SignInPath, Result: res}
}

// onceNav forwards only the first navigation.
type onceNav struct {
	mu     sync.Mutex
	next   nav.Navigator
	called bool
}

func (o *onceNav) Navigate(path string, opts nav.Options) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.called {
		return
	}
	o.called = true
	o.next.Navigate(path, opts)
}

func (o *onceNav) done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.called
}
