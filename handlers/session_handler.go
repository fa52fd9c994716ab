package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"studioAPI/internal/composer"
	"studioAPI/internal/layers"
	"studioAPI/internal/metrics"
	"studioAPI/internal/placement"
	"studioAPI/internal/snap"
	"studioAPI/internal/templates"
	"studioAPI/internal/types/assettype"
	"studioAPI/internal/types/layer"
	"studioAPI/internal/types/project"
	"studioAPI/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const requestTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type SessionHandler struct {
	manager *services.EditorManager
	exports *services.ExportService
	gallery services.ProjectRepository
}

func NewSessionHandler(manager *services.EditorManager, exports *services.ExportService, gallery services.ProjectRepository) *SessionHandler {
	return &SessionHandler{manager: manager, exports: exports, gallery: gallery}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	s, err := h.manager.Lookup(mux.Vars(r)["sessionID"])
	if err != nil {
		respondWithServiceError(w, err)
		return nil, false
	}
	return s, true
}

// mutate runs fn on the session and answers with the resulting snapshot.
func (h *SessionHandler) mutate(w http.ResponseWriter, r *http.Request, code int, fn func(ed *composer.Composer) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snapshot, err := s.Apply(ctx, fn)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, code, snapshot)
}

type createSessionRequest struct {
	AssetType  assettype.AssetType `json:"assetType"`
	Template   string              `json:"template"`
	ResumeFrom string              `json:"resumeFrom"`
}

type createSessionResponse struct {
	SessionID string            `json:"sessionId"`
	WsURL     string            `json:"wsUrl"`
	State     services.Snapshot `json:"state"`
}

// CreateSession starts a new editing session, or resumes the work in
// progress of an earlier one.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && err != io.EOF {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var session *services.Session
	if req.ResumeFrom != "" {
		s, err := h.manager.ResumeSession(ctx, req.ResumeFrom)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		session = s
	} else {
		at := req.AssetType
		if at == "" {
			at = assettype.Default
		}
		if !at.Valid() {
			respondWithServiceError(w, fmt.Errorf("%w: %q", services.ErrUnknownAssetType, at))
			return
		}
		initial := project.State{AssetType: at, Meta: project.DefaultMetadata()}
		if req.Template != "" {
			initial.Layers = templates.Build(req.Template, at, initial.Meta)
		}
		session = h.manager.CreateSession(uuid.New().String(), initial)
	}

	snapshot, err := session.Snapshot(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		WsURL:     "/api/v1/sessions/ws/" + session.ID,
		State:     snapshot,
	})
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.manager.DeleteSession(mux.Vars(r)["sessionID"]) {
		respondWithServiceError(w, services.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) AddLayer(w http.ResponseWriter, r *http.Request) {
	var p layer.Patch
	if err := decodeJSON(r, &p); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid layer")
		return
	}
	h.mutate(w, r, http.StatusCreated, func(ed *composer.Composer) error {
		ed.AddLayer(p)
		return nil
	})
}

func layerID(r *http.Request) string { return mux.Vars(r)["layerID"] }

// Layer operations on an unknown id change nothing and answer with the
// unchanged snapshot.

func (h *SessionHandler) UpdateLayer(w http.ResponseWriter, r *http.Request) {
	var p layer.Patch
	if err := decodeJSON(r, &p); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid layer patch")
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.UpdateLayer(layerID(r), p)
		return nil
	})
}

func (h *SessionHandler) RemoveLayer(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.RemoveLayer(layerID(r))
		return nil
	})
}

// DuplicateLayer answers 201 when a copy was made.
func (h *SessionHandler) DuplicateLayer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	created := false
	snapshot, err := s.Apply(ctx, func(ed *composer.Composer) error {
		_, created = ed.DuplicateLayer(layerID(r))
		return nil
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, snapshot)
}

func (h *SessionHandler) MoveLayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction layers.Direction `json:"direction"`
	}
	if err := decodeJSON(r, &req); err != nil || (req.Direction != layers.Up && req.Direction != layers.Down) {
		respondWithError(w, http.StatusBadRequest, "direction must be up or down")
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.MoveLayer(layerID(r), req.Direction)
		return nil
	})
}

// DragLayer moves a layer to a candidate position as a single drag step
// and returns the snapped position with its guides. There is no position to
// report for an unknown layer, so that answers 404.
func (h *SessionHandler) DragLayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid position")
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var res snap.Result
	err := s.Do(ctx, func(ed *composer.Composer) error {
		if _, exists := ed.Layer(layerID(r)); !exists {
			return services.ErrLayerNotFound
		}
		d, ok := ed.BeginDrag(layerID(r))
		if !ok {
			return services.ErrLayerLocked
		}
		defer d.End()
		res = d.Move(req.X, req.Y)
		metrics.ObserveSnap(res.Guides.X != nil, res.Guides.Y != nil)
		return nil
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) AddOptionalLayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role layer.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil || !req.Role.Synced() {
		respondWithError(w, http.StatusBadRequest, "role must be one of the text fields")
		return
	}
	h.mutate(w, r, http.StatusCreated, func(ed *composer.Composer) error {
		ed.AddOptionalLayer(req.Role)
		return nil
	})
}

func (h *SessionHandler) SetMeta(w http.ResponseWriter, r *http.Request) {
	var m project.Metadata
	if err := decodeJSON(r, &m); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid metadata")
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.SetMeta(m)
		return nil
	})
}

func (h *SessionHandler) SetAssetType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetType assettype.AssetType `json:"assetType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		if !ed.SetAssetType(req.AssetType) {
			return fmt.Errorf("%w: %q", services.ErrUnknownAssetType, req.AssetType)
		}
		return nil
	})
}

func (h *SessionHandler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.ApplyTemplate(req.Template)
		return nil
	})
}

func (h *SessionHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.Undo()
		return nil
	})
}

func (h *SessionHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.Redo()
		return nil
	})
}

// InsertImage accepts either a JSON body {source, url} or a multipart
// upload with a "file" part and a "source" field.
func (h *SessionHandler) InsertImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var src placement.Source
	var url string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")
		if err := services.ValidateUpload(mimeType, header.Size); err != nil {
			respondWithServiceError(w, err)
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, services.MaxImageBytes+1))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "could not read file")
			return
		}
		if err := services.ValidateUpload(mimeType, int64(len(data))); err != nil {
			respondWithServiceError(w, err)
			return
		}
		src = placement.Source(r.FormValue("source"))
		url = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	} else {
		var req struct {
			Source placement.Source `json:"source"`
			URL    string           `json:"url"`
		}
		if err := decodeJSON(r, &req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		src, url = req.Source, req.URL
	}
	if src == "" {
		src = placement.Upload
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, err := s.InsertImage(ctx, src, url)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"layerId": id})
}

func sendFile(w http.ResponseWriter, exp *services.Export) {
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.FileName))
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}

func (h *SessionHandler) state(w http.ResponseWriter, r *http.Request) (project.State, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return project.State{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	// pending edits are recorded before anything leaves the session
	var st project.State
	err := s.View(ctx, func(ed *composer.Composer) {
		ed.FlushHistory()
		st = ed.State()
	})
	if err != nil {
		respondWithServiceError(w, err)
		return project.State{}, false
	}
	return st, true
}

func (h *SessionHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	exp, err := h.exports.ProjectJSON(st)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	sendFile(w, exp)
}

func (h *SessionHandler) ExportImage(w http.ResponseWriter, r *http.Request) {
	format := services.ImageFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = services.FormatPNG
	}
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	exp, err := h.exports.Image(ctx, st, format)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	sendFile(w, exp)
}

func (h *SessionHandler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetTypes []assettype.AssetType `json:"assetTypes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil && err != io.EOF {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	exp, report, err := h.exports.Batch(ctx, st, req.AssetTypes)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if len(report.Failed) > 0 {
		log.Printf("Batch export skipped %d formats", len(report.Failed))
		w.Header().Set("X-Export-Skipped", fmt.Sprint(len(report.Failed)))
	}
	sendFile(w, exp)
}

// Import loads a project document into the session. The previous project
// stays one undo away.
func (h *SessionHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 20<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "could not read body")
		return
	}
	st, err := h.exports.ImportProject(data)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.Load(st)
		return nil
	})
}

// LoadProject opens a project from the local gallery in the session.
func (h *SessionHandler) LoadProject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := h.gallery.Get(ctx, "", mux.Vars(r)["projectID"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	st := saved.Export.State()
	h.mutate(w, r, http.StatusOK, func(ed *composer.Composer) error {
		ed.Load(st)
		return nil
	})
}

// JoinSession upgrades to a websocket on which the editor receives state,
// guides and notices and sends editing actions.
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.manager.GetSession(mux.Vars(r)["sessionID"])
	if !ok {
		http.Error(w, "Editing session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := services.NewClient(session, conn)
	if err := session.Join(client); err != nil {
		conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}
