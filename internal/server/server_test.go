package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/store"
	"github.com/blackwell-systems/modsync/internal/updater"
)

type fakeRefresher struct {
	mu         sync.Mutex
	mods       []mods.Mod
	refreshing bool
	forces     []bool
	done       chan struct{}

	// locked makes Begin fail while IsRefreshing still reports false,
	// as when another caller took the lock a moment earlier.
	locked bool
}

func (f *fakeRefresher) Mods() []mods.Mod { return mods.Clone(f.mods) }

func (f *fakeRefresher) LastUpdated() *time.Time {
	t := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)
	return &t
}

func (f *fakeRefresher) IsRefreshing() bool { return f.refreshing }

func (f *fakeRefresher) Progress() *refresh.Progress {
	if !f.refreshing {
		return nil
	}
	return &refresh.Progress{Processed: 1, Total: 3, CurrentMod: "Admin UI"}
}

func (f *fakeRefresher) Begin(force bool) (func(context.Context) ([]mods.Mod, error), bool) {
	if f.refreshing || f.locked {
		return nil, false
	}
	return func(context.Context) ([]mods.Mod, error) {
		f.mu.Lock()
		f.forces = append(f.forces, force)
		f.mu.Unlock()
		if f.done != nil {
			f.done <- struct{}{}
		}
		return f.mods, nil
	}, true
}

type fakeUpdater struct {
	err error
}

func (f *fakeUpdater) Update(_ context.Context, fileName string, _ updater.Options) (*updater.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &updater.Result{OldFileName: fileName, NewFileName: "AdminUI-1.0.4.jar"}, nil
}

func (f *fakeUpdater) UpdateAll(context.Context) (*updater.BulkResult, error) {
	return &updater.BulkResult{
		Updated: []updater.Result{{OldFileName: "a.jar", NewFileName: "b.jar"}},
		Failed:  []updater.BulkFailure{},
	}, nil
}

type fixedSchedule struct{ at time.Time }

func (f fixedSchedule) NextRun() *time.Time { return &f.at }

func testMods() []mods.Mod {
	a := mods.Mod{Name: "Admin UI", FileName: "AdminUI-1.0.3.jar", Version: "1.0.3", Authors: []string{"Buuz135"}}
	a.Resolve("https://www.curseforge.com/hytale/mods/admin-ui", "1.0.4", mods.MethodExact)
	b := mods.Mod{Name: "Local Only", FileName: "local.jar", Version: "1.0", Authors: []string{}}
	return []mods.Mod{a, b}
}

func newTestServer(t *testing.T, r *fakeRefresher, u *fakeUpdater) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.CreateSchema())
	t.Cleanup(func() { st.Close() })

	s := New(Deps{
		Refresher: r,
		Updater:   u,
		Overrides: st,
		Scheduler: fixedSchedule{at: time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("metrics"))
		}),
	}, nil)
	t.Cleanup(s.Close)
	return s, st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeRefresher{}, &fakeUpdater{})

	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestListMods(t *testing.T) {
	s, _ := newTestServer(t, &fakeRefresher{mods: testMods()}, &fakeUpdater{})

	rec := do(t, s, http.MethodGet, "/api/mods", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		TotalCount int `json:"totalCount"`
		Mods       []struct {
			Name          string `json:"name"`
			CurseForgeURL string `json:"curseForgeUrl"`
			FoundVia      string `json:"foundVia"`
			HasUpdate     bool   `json:"hasUpdate"`
		} `json:"mods"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Mods, 2)
	assert.Equal(t, "exact", resp.Mods[0].FoundVia)
	assert.True(t, resp.Mods[0].HasUpdate)
	assert.Empty(t, resp.Mods[1].CurseForgeURL)
	assert.False(t, resp.Mods[1].HasUpdate)
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t, &fakeRefresher{mods: testMods(), refreshing: true}, &fakeUpdater{})

	rec := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.ModCount)
	assert.True(t, resp.IsRefreshing)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, "Admin UI", resp.Progress.CurrentMod)
	require.NotNil(t, resp.NextScheduledRefresh)
	assert.True(t, resp.NextScheduledRefresh.Equal(time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)))
}

func TestRefresh(t *testing.T) {
	r := &fakeRefresher{done: make(chan struct{}, 1)}
	s, _ := newTestServer(t, r, &fakeUpdater{})

	rec := do(t, s, http.MethodPost, "/api/mods/refresh?force=true", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "Refresh started")

	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("background refresh did not run")
	}
	r.mu.Lock()
	assert.Equal(t, []bool{true}, r.forces)
	r.mu.Unlock()
}

func TestRefresh_AlreadyRunning(t *testing.T) {
	r := &fakeRefresher{refreshing: true}
	s, _ := newTestServer(t, r, &fakeUpdater{})

	rec := do(t, s, http.MethodPost, "/api/mods/refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
	assert.Empty(t, r.forces)
}

func TestRefresh_LostRaceReportsInProgress(t *testing.T) {
	r := &fakeRefresher{locked: true}
	s, _ := newTestServer(t, r, &fakeUpdater{})

	rec := do(t, s, http.MethodPost, "/api/mods/refresh", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
	assert.NotContains(t, rec.Body.String(), "Refresh started")
	assert.Empty(t, r.forces)
}

func TestUpdate(t *testing.T) {
	s, _ := newTestServer(t, &fakeRefresher{}, &fakeUpdater{})

	rec := do(t, s, http.MethodPost, "/api/mods/AdminUI-1.0.3.jar/update", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp updateResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "AdminUI-1.0.3.jar", resp.OldFileName)
	assert.Equal(t, "AdminUI-1.0.4.jar", resp.NewFileName)
}

func TestUpdate_ErrorKinds(t *testing.T) {
	tests := []struct {
		kind updater.Kind
		want int
	}{
		{updater.KindNotFound, http.StatusNotFound},
		{updater.KindNoCatalogURL, http.StatusUnprocessableEntity},
		{updater.KindDistributionNotAllowed, http.StatusForbidden},
		{updater.KindIntegrityFailed, http.StatusBadGateway},
		{updater.KindUpdateFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			s, _ := newTestServer(t, &fakeRefresher{}, &fakeUpdater{err: &updater.Error{Kind: tt.kind}})

			rec := do(t, s, http.MethodPost, "/api/mods/x.jar/update", "")
			assert.Equal(t, tt.want, rec.Code)

			var resp updateResponse
			decode(t, rec, &resp)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.kind.Message(), resp.Message)
			assert.Equal(t, tt.kind.String(), resp.Error)
		})
	}
}

func TestUpdateAll(t *testing.T) {
	s, _ := newTestServer(t, &fakeRefresher{}, &fakeUpdater{})

	rec := do(t, s, http.MethodPost, "/api/mods/update-all", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp updater.BulkResult
	decode(t, rec, &resp)
	assert.Len(t, resp.Updated, 1)
}

func TestOverrides(t *testing.T) {
	s, st := newTestServer(t, &fakeRefresher{}, &fakeUpdater{})

	rec := do(t, s, http.MethodGet, "/api/overrides/Admin%20UI", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/overrides/Admin%20UI", `{"curseForgeUrl":"ftp://nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/overrides/Admin%20UI", `{"curseForgeUrl":"https://www.curseforge.com/hytale/mods/admin-ui"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var o overrideResponse
	decode(t, rec, &o)
	assert.Equal(t, "Admin UI", o.ModName)

	stored, err := st.GetOverride("Admin UI")
	require.NoError(t, err)
	require.NotNil(t, stored)

	rec = do(t, s, http.MethodGet, "/api/overrides", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []overrideResponse
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = do(t, s, http.MethodDelete, "/api/overrides/Admin%20UI", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/api/overrides/Admin%20UI", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateOverrideURL(t *testing.T) {
	assert.NoError(t, ValidateOverrideURL("https://www.curseforge.com/hytale/mods/x"))
	assert.NoError(t, ValidateOverrideURL(" http://example.com/x "))
	assert.Error(t, ValidateOverrideURL(""))
	assert.Error(t, ValidateOverrideURL("www.curseforge.com/hytale/mods/x"))
	assert.Error(t, ValidateOverrideURL("https:///nohost"))
}
