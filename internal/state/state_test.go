package state

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

func ptr(s string) *string { return &s }

func TestSessions_SetFilterMerges(t *testing.T) {
	s := NewSessions()
	assert.True(t, s.Filter("a").IsZero())

	f := s.SetFilter("a", models.FilterUpdate{Process: ptr("Order Processing")})
	assert.Equal(t, models.Filter{Process: "Order Processing"}, f)

	f = s.SetFilter("a", models.FilterUpdate{Version: ptr("v1.0"), SearchText: ptr("inst")})
	assert.Equal(t, models.Filter{Process: "Order Processing", Version: "v1.0", SearchText: "inst"}, f)

	f = s.SetFilter("a", models.FilterUpdate{Process: ptr("Shipping Management")})
	assert.Equal(t, models.Filter{Process: "Shipping Management", SearchText: "inst"}, f)

	f = s.SetFilter("a", models.FilterUpdate{Process: ptr("Order Processing"), Version: ptr("v1.1")})
	assert.Equal(t, "v1.1", f.Version)

	assert.True(t, s.Filter("b").IsZero())

	s.ClearFilter("a")
	assert.True(t, s.Filter("a").IsZero())
}

func TestSessions_ActiveInstance(t *testing.T) {
	s := NewSessions()
	s.SetActiveInstance("a", "inst-001")
	assert.Equal(t, "inst-001", s.ActiveInstance("a"))
	assert.Empty(t, s.ActiveInstance("b"))

	s.Forget("a")
	assert.Empty(t, s.ActiveInstance("a"))
}

func TestSessions_Concurrent(t *testing.T) {
	s := NewSessions()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetFilter("a", models.FilterUpdate{SearchText: ptr("x")})
			_ = s.Filter("a")
		}()
	}
	wg.Wait()
	assert.Equal(t, "x", s.Filter("a").SearchText)
}

func TestTheme(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, ThemeLight, Theme(r))

	w := httptest.NewRecorder()
	assert.Equal(t, ThemeDark, ToggleTheme(w, r, false))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ThemeCookie, cookies[0].Name)
	assert.Equal(t, ThemeDark, cookies[0].Value)

	r.AddCookie(cookies[0])
	assert.Equal(t, ThemeDark, Theme(r))
	assert.Equal(t, ThemeLight, ToggleTheme(httptest.NewRecorder(), r, false))

	assert.Equal(t, ThemeLight, SetTheme(httptest.NewRecorder(), "purple", true))
}
