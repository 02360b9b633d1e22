package nav

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectorFirstCallWins(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

	r := NewRedirector(c)
	r.Navigate("/login", Options{Hard: true})
	r.Navigate("/dashboard", Options{})

	wrote, err := r.Flush()
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	assert.NotEmpty(t, rec.Header().Get("Clear-Site-Data"))
}

func TestRedirectorNothingPending(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
	wrote, err := NewRedirector(c).Flush()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestRedirectReplaceUsesSeeOther(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/login", nil), rec)
	require.NoError(t, Redirect(c, "/dashboard/driver", Options{Replace: true}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, rec.Header().Get("Clear-Site-Data"))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var n Navigator = &r
	n.Navigate("/a", Options{Replace: true})
	calls := r.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/a", calls[0].Path)
	assert.True(t, calls[0].Replace)
}
