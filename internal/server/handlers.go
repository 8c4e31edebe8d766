package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/refresh"
	"github.com/blackwell-systems/modsync/internal/store"
	"github.com/blackwell-systems/modsync/internal/updater"
)

type modDTO struct {
	mods.Mod
	HasUpdate bool `json:"hasUpdate"`
}

type modListResponse struct {
	LastUpdated *time.Time `json:"lastUpdated"`
	TotalCount  int        `json:"totalCount"`
	Mods        []modDTO   `json:"mods"`
}

type statusResponse struct {
	LastUpdated          *time.Time        `json:"lastUpdated"`
	ModCount             int               `json:"modCount"`
	IsRefreshing         bool              `json:"isRefreshing"`
	Progress             *refresh.Progress `json:"progress"`
	NextScheduledRefresh *time.Time        `json:"nextScheduledRefresh"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type updateResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Error       string `json:"error,omitempty"`
	NewFileName string `json:"newFileName,omitempty"`
	OldFileName string `json:"oldFileName,omitempty"`
}

type overrideRequest struct {
	CurseForgeURL string `json:"curseForgeUrl"`
}

type overrideResponse struct {
	ModName       string     `json:"modName"`
	CurseForgeURL string     `json:"curseForgeUrl"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		LastUpdated:  s.deps.Refresher.LastUpdated(),
		ModCount:     len(s.deps.Refresher.Mods()),
		IsRefreshing: s.deps.Refresher.IsRefreshing(),
		Progress:     s.deps.Refresher.Progress(),
	}
	if s.deps.Scheduler != nil {
		resp.NextScheduledRefresh = s.deps.Scheduler.NextRun()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMods(w http.ResponseWriter, r *http.Request) {
	all := s.deps.Refresher.Mods()
	resp := modListResponse{
		LastUpdated: s.deps.Refresher.LastUpdated(),
		TotalCount:  len(all),
		Mods:        make([]modDTO, 0, len(all)),
	}
	for _, m := range all {
		resp.Mods = append(resp.Mods, modDTO{Mod: m, HasUpdate: m.HasUpdate()})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	run, ok := s.deps.Refresher.Begin(force)
	if !ok {
		writeJSON(w, http.StatusAccepted, messageResponse{Message: "Refresh already in progress"})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := run(s.ctx); err != nil {
			s.logger.Error("error during manual refresh", "error", err)
		}
	}()

	s.logger.Info("manual refresh triggered", "force", force)
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Refresh started"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fileName := pathParam(r, "fileName")

	res, err := s.deps.Updater.Update(r.Context(), fileName, updater.Options{})
	if err != nil {
		var ue *updater.Error
		if !errors.As(err, &ue) {
			writeJSON(w, http.StatusInternalServerError, updateResponse{Message: "Update failed: " + err.Error()})
			return
		}
		writeJSON(w, updateStatus(ue.Kind), updateResponse{
			Message: ue.Kind.Message(),
			Error:   ue.Kind.String(),
		})
		return
	}

	writeJSON(w, http.StatusOK, updateResponse{
		Success:     true,
		Message:     "Mod updated successfully",
		NewFileName: res.NewFileName,
		OldFileName: res.OldFileName,
	})
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Updater.UpdateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Overrides.ListOverrides()
	if err != nil {
		s.logger.Error("failed to list overrides", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list overrides")
		return
	}
	resp := make([]overrideResponse, 0, len(list))
	for _, o := range list {
		resp = append(resp, toOverrideResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	o, err := s.deps.Overrides.GetOverride(name)
	if err != nil {
		s.logger.Error("failed to get override", "mod", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get override")
		return
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "no override for "+name)
		return
	}
	writeJSON(w, http.StatusOK, toOverrideResponse(o))
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	var req overrideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ValidateOverrideURL(req.CurseForgeURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := s.deps.Overrides.SetOverride(name, strings.TrimSpace(req.CurseForgeURL))
	if err != nil {
		s.logger.Error("failed to set override", "mod", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set override")
		return
	}
	s.logger.Info("override set", "mod", name, "url", o.URL)
	writeJSON(w, http.StatusOK, toOverrideResponse(o))
}

func (s *Server) handleDeleteOverride(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	deleted, err := s.deps.Overrides.DeleteOverride(name)
	if err != nil {
		s.logger.Error("failed to delete override", "mod", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete override")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no override for "+name)
		return
	}
	s.logger.Info("override removed", "mod", name)
	w.WriteHeader(http.StatusNoContent)
}

// ValidateOverrideURL requires an absolute http or https URL.
func ValidateOverrideURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("curseForgeUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("curseForgeUrl must be an absolute http(s) URL")
	}
	return nil
}

func updateStatus(k updater.Kind) int {
	switch k {
	case updater.KindNotFound, updater.KindNotOnCatalog, updater.KindNoFiles:
		return http.StatusNotFound
	case updater.KindNoCatalogURL, updater.KindUnparseableURL:
		return http.StatusUnprocessableEntity
	case updater.KindDistributionNotAllowed:
		return http.StatusForbidden
	case updater.KindDownloadFailed, updater.KindIntegrityFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toOverrideResponse(o *store.Override) overrideResponse {
	return overrideResponse{
		ModName:       o.Name,
		CurseForgeURL: o.URL,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// pathParam returns a decoded route parameter.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
