package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/api"
	"github.com/canonical/marathond/auth"
	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/executor"
	"github.com/canonical/marathond/groupmanager"
	"github.com/canonical/marathond/launch/fake"
	"github.com/canonical/marathond/repository/memory"
	"github.com/canonical/marathond/timestamp"
)

func newServer() *api.Server {
	hub := events.NewHub()
	ex := executor.New(fake.New(), hub, nil)
	mgr := groupmanager.New(memory.New(), ex, hub, timestamp.Now())
	return api.NewServer(mgr, hub, auth.NewPermissive())
}

func TestCreateGroupRoot(t *testing.T) {
	s := newServer()

	body := []byte(`{"id":"/a","apps":[{"id":"b","cmd":"run","instances":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v2/groups", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/a", rec.Header().Get("Location"))

	req2 := httptest.NewRequest(http.MethodGet, "/v2/groups/a", nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &view))
	apps := view["apps"].(map[string]any)
	app := apps["/a/b"].(map[string]any)
	assert.Equal(t, float64(1), app["instances"])
}

func TestDoubleCreateConflicts(t *testing.T) {
	s := newServer()

	body := []byte(`{"id":"/a","apps":[{"id":"b","cmd":"run","instances":1}]}`)

	req1 := httptest.NewRequest(http.MethodPost, "/v2/groups", bytes.NewReader(body))
	rec1 := httptest.NewRecorder()
	s.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusCreated, rec1.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/v2/groups", bytes.NewReader(body))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestScaleViaPut(t *testing.T) {
	s := newServer()

	body := []byte(`{"id":"/a","apps":[{"id":"b","cmd":"run","instances":1}]}`)
	req1 := httptest.NewRequest(http.MethodPost, "/v2/groups", bytes.NewReader(body))
	rec1 := httptest.NewRecorder()
	s.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusCreated, rec1.Code)

	scaleBody := []byte(`{"scaleBy":2.5}`)
	req2 := httptest.NewRequest(http.MethodPut, "/v2/groups/a", bytes.NewReader(scaleBody))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestDryRunDoesNotMutate(t *testing.T) {
	s := newServer()

	body := []byte(`{"id":"/a","apps":[{"id":"b","cmd":"run","instances":1}]}`)
	req1 := httptest.NewRequest(http.MethodPut, "/v2/groups/a", bytes.NewReader(body))
	rec1 := httptest.NewRecorder()
	s.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rec1.Body.Bytes(), &view))

	req2 := httptest.NewRequest(http.MethodPut, "/v2/groups/a?dryRun=true", bytes.NewReader([]byte(`{"scaleBy":3}`)))
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var dryView map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &dryView))
	_, hasSteps := dryView["steps"]
	assert.True(t, hasSteps)

	req3 := httptest.NewRequest(http.MethodGet, "/v2/groups/a", nil)
	rec3 := httptest.NewRecorder()
	s.ServeHTTP(rec3, req3)

	var getView map[string]any
	require.NoError(t, json.Unmarshal(rec3.Body.Bytes(), &getView))
	apps := getView["apps"].(map[string]any)
	app := apps["/a/b"].(map[string]any)
	assert.Equal(t, float64(1), app["instances"])
}
