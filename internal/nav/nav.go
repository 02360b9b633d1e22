// Package nav abstracts navigation so session logic can issue redirects
// without knowing about the HTTP shell.
package nav

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

// Options qualify a navigation.  Replace drops the current entry from
// history; Hard discards all in-memory client state.
type Options struct {
	Replace bool
	Hard    bool
}

// Navigator performs a navigation.
type Navigator interface {
	Navigate(path string, opts Options)
}

// Func adapts a function to Navigator.
type Func func(path string, opts Options)

func (f Func) Navigate(path string, opts Options) { f(path, opts) }

// Call is one recorded navigation.
type Call struct {
	Path string
	Options
}

// Recorder remembers every navigation; it is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Navigate(path string, opts Options) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Path: path, Options: opts})
	r.mu.Unlock()
}

// Calls returns a copy of the recorded navigations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Redirector turns the first navigation of a request into an HTTP
// redirect; later calls are ignored.
type Redirector struct {
	c    echo.Context
	mu   sync.Mutex
	call *Call
}

// NewRedirector binds a Redirector to c.
func NewRedirector(c echo.Context) *Redirector { return &Redirector{c: c} }

func (r *Redirector) Navigate(path string, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.call == nil {
		r.call = &Call{Path: path, Options: opts}
	}
}

// Target returns the pending navigation, if any.
func (r *Redirector) Target() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.call == nil {
		return Call{}, false
	}
	return *r.call, true
}

// Flush writes the pending navigation as a redirect and reports whether
// one was written.
func (r *Redirector) Flush() (bool, error) {
	call, ok := r.Target()
	if !ok {
		return false, nil
	}
	return true, Redirect(r.c, call.Path, call.Options)
}

// Redirect writes path as an HTTP redirect.  Replace uses 303 so the
// client does not keep the POST in history; Hard adds Clear-Site-Data.
func Redirect(c echo.Context, path string, opts Options) error {
	code := http.StatusFound
	if opts.Replace {
		code = http.StatusSeeOther
	}
	if opts.Hard {
		c.Response().Header().Set("Clear-Site-Data", `"cache", "storage"`)
	}
	return c.Redirect(code, path)
}
