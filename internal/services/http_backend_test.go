package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vicodes/process-flow-canvas-dream/internal/diagram"
	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
	"github.com/vicodes/process-flow-canvas-dream/pkg/models"
)

type fakeAPI struct {
	instances []models.ProcessInstance
	auth      []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	switch {
	case r.URL.Path == "/api/processDefinitions":
		_ = json.NewEncoder(w).Encode([]models.ProcessDefinition{{ID: "proc-001", Name: "Order Processing", Version: "v1.0"}})
	case r.URL.Path == "/api/processInstances":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		from := min(page*size, len(f.instances))
		to := min(from+size, len(f.instances))
		_ = json.NewEncoder(w).Encode(models.Page[models.ProcessInstance]{
			Content:       f.instances[from:to],
			Number:        page,
			Size:          size,
			TotalElements: len(f.instances),
			TotalPages:    (len(f.instances) + size - 1) / size,
		})
	case r.URL.Path == "/api/processInstance/inst-001":
		_ = json.NewEncoder(w).Encode(models.ProcessInstance{ID: "inst-001", Status: models.StatusActive, DiagramXML: diagram.SampleOrderBPMN})
	case r.URL.Path == "/api/processDefinition/proc-001":
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(diagram.SampleOrderBPMN))
	case r.URL.Path == "/api/processInstance/broken":
		w.WriteHeader(http.StatusInternalServerError)
	default:
		http.NotFound(w, r)
	}
}

func newTestBackend(t *testing.T, api *fakeAPI, pageSize int) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	b, err := NewHTTPBackend(srv.URL+"/", 5*time.Second, pageSize, logging.Nop())
	require.NoError(t, err)
	return b
}

func TestHTTPBackend_ForwardsBearerToken(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBackend(t, api, 10)

	defs, err := b.ListProcessDefinitions(WithToken(context.Background(), "abc123"))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Order Processing", defs[0].Name)

	_, err = b.ListProcessDefinitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer abc123", ""}, api.auth)
}

func TestHTTPBackend_ListAllWalksPages(t *testing.T) {
	api := &fakeAPI{}
	for i := 1; i <= 7; i++ {
		api.instances = append(api.instances, models.ProcessInstance{ID: fmt.Sprintf("inst-%03d", i)})
	}
	b := newTestBackend(t, api, 3)

	all, err := b.ListAllProcessInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, "inst-007", all[6].ID)
	assert.Len(t, api.auth, 3)

	page, err := b.ListProcessInstances(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.True(t, page.Last())
	assert.Len(t, page.Content, 1)
}

func TestHTTPBackend_GetInstanceAndXML(t *testing.T) {
	b := newTestBackend(t, &fakeAPI{}, 10)

	inst, err := b.GetProcessInstance(context.Background(), "inst-001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, inst.Status)
	assert.Contains(t, inst.DiagramXML, "Process_Order")

	xml, err := b.GetProcessDefinitionXML(context.Background(), "proc-001")
	require.NoError(t, err)
	assert.Equal(t, diagram.SampleOrderBPMN, xml)
}

func TestHTTPBackend_Errors(t *testing.T) {
	b := newTestBackend(t, &fakeAPI{}, 10)

	_, err := b.GetProcessInstance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = b.GetProcessInstance(context.Background(), "broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "API Error: 500 Internal Server Error", err.Error())
}

func TestNewHTTPBackend_InvalidURL(t *testing.T) {
	_, err := NewHTTPBackend("not a url", time.Second, 0, nil)
	assert.Error(t, err)
}
