package handlers

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"

	"studioAPI/internal/composer"
	"studioAPI/internal/types/project"
	"studioAPI/middleware"
	"studioAPI/services"

	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// CloudProjects is the PostgreSQL gallery with its sharing operations.
type CloudProjects interface {
	services.ProjectRepository
	SetPublic(ctx context.Context, ownerID, id string, public bool) error
	GetShared(ctx context.Context, id string) (*project.Saved, error)
}

type ProjectHandler struct {
	local   services.ProjectRepository
	cloud   CloudProjects
	manager *services.EditorManager
}

// NewProjectHandler accepts a nil cloud backend; cloud routes then answer
// 503.
func NewProjectHandler(local services.ProjectRepository, cloud CloudProjects, manager *services.EditorManager) *ProjectHandler {
	return &ProjectHandler{local: local, cloud: cloud, manager: manager}
}

// saveProjectRequest saves either the live state of a session or a project
// document sent by the client.
type saveProjectRequest struct {
	project.SaveRequest
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Project   *project.Export `json:"project"`
}

func (h *ProjectHandler) decodeSave(ctx context.Context, r *http.Request) (project.Saved, int, string) {
	var req saveProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		return project.Saved{}, http.StatusBadRequest, "invalid request body"
	}

	saved := project.Saved{ID: req.ID, Name: req.Name, Thumbnail: req.Thumbnail}
	switch {
	case req.SessionID != "":
		s, err := h.manager.Lookup(req.SessionID)
		if err != nil {
			return project.Saved{}, http.StatusNotFound, err.Error()
		}
		var st project.State
		err = s.View(ctx, func(ed *composer.Composer) {
			ed.FlushHistory()
			st = ed.State()
		})
		if err != nil {
			return project.Saved{}, http.StatusGone, err.Error()
		}
		saved.Export = st.Export()
	case req.Project != nil:
		saved.Export = req.Project.State().Export()
	default:
		return project.Saved{}, http.StatusBadRequest, "sessionId or project is required"
	}

	if saved.Name == "" {
		saved.Name = saved.Meta.Title
	}
	if saved.Name == "" {
		return project.Saved{}, http.StatusBadRequest, "name is required"
	}
	return saved, 0, ""
}

func (h *ProjectHandler) list(w http.ResponseWriter, r *http.Request, repo services.ProjectRepository, owner string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	projects, err := repo.List(ctx, owner)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) get(w http.ResponseWriter, r *http.Request, repo services.ProjectRepository, owner string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := repo.Get(ctx, owner, mux.Vars(r)["projectID"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

func (h *ProjectHandler) save(w http.ResponseWriter, r *http.Request, repo services.ProjectRepository, owner string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, code, msg := h.decodeSave(ctx, r)
	if code != 0 {
		respondWithError(w, code, msg)
		return
	}
	out, err := repo.Save(ctx, owner, saved)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, out)
}

func (h *ProjectHandler) remove(w http.ResponseWriter, r *http.Request, repo services.ProjectRepository, owner string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := repo.Delete(ctx, owner, mux.Vars(r)["projectID"]); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ListLocal(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.local, "")
}

func (h *ProjectHandler) GetLocal(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, h.local, "")
}

func (h *ProjectHandler) SaveLocal(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.local, "")
}

func (h *ProjectHandler) DeleteLocal(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, h.local, "")
}

// owner resolves the authenticated caller for cloud routes.
func (h *ProjectHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.cloud == nil {
		respondWithError(w, http.StatusServiceUnavailable, "cloud storage is not configured")
		return "", false
	}
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return clerkID, true
}

func (h *ProjectHandler) ListCloud(w http.ResponseWriter, r *http.Request) {
	if owner, ok := h.owner(w, r); ok {
		h.list(w, r, h.cloud, owner)
	}
}

func (h *ProjectHandler) GetCloud(w http.ResponseWriter, r *http.Request) {
	if owner, ok := h.owner(w, r); ok {
		h.get(w, r, h.cloud, owner)
	}
}

func (h *ProjectHandler) SaveCloud(w http.ResponseWriter, r *http.Request) {
	if owner, ok := h.owner(w, r); ok {
		h.save(w, r, h.cloud, owner)
	}
}

func (h *ProjectHandler) DeleteCloud(w http.ResponseWriter, r *http.Request) {
	if owner, ok := h.owner(w, r); ok {
		h.remove(w, r, h.cloud, owner)
	}
}

func (h *ProjectHandler) SetPublic(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req struct {
		IsPublic bool `json:"is_public"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := mux.Vars(r)["projectID"]
	if err := h.cloud.SetPublic(ctx, owner, id, req.IsPublic); err != nil {
		respondWithServiceError(w, err)
		return
	}

	resp := map[string]any{"id": id, "is_public": req.IsPublic}
	if req.IsPublic {
		link := shareURL(r, id)
		resp["shareUrl"] = link
		if png, err := qrcode.Encode(link, qrcode.Medium, qrSize); err == nil {
			resp["qrCodeBase64"] = base64.StdEncoding.EncodeToString(png)
		} else {
			log.Printf("Failed to generate share QR for %s: %v", id, err)
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// shareURL is the absolute deep link of a public project as seen by the
// caller.
func shareURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/api/v1/shared/" + id
}

// GetShared serves the public deep link of a cloud project.
func (h *ProjectHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	if h.cloud == nil {
		respondWithError(w, http.StatusServiceUnavailable, "cloud storage is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := h.cloud.GetShared(ctx, mux.Vars(r)["projectID"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}

// GetSharedQR serves the deep link of a public project as a PNG QR code.
func (h *ProjectHandler) GetSharedQR(w http.ResponseWriter, r *http.Request) {
	if h.cloud == nil {
		respondWithError(w, http.StatusServiceUnavailable, "cloud storage is not configured")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id := mux.Vars(r)["projectID"]
	if _, err := h.cloud.GetShared(ctx, id); err != nil {
		respondWithServiceError(w, err)
		return
	}
	png, err := qrcode.Encode(shareURL(r, id), qrcode.Medium, qrSize)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
