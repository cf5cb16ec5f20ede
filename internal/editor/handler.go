package editor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/assist"
	"github.com/debemdeboas/composer/internal/config"
	"github.com/debemdeboas/composer/internal/document"
	"github.com/debemdeboas/composer/internal/media"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/publish"
	"github.com/debemdeboas/composer/internal/remote"
	"github.com/debemdeboas/composer/internal/routes"
	"github.com/debemdeboas/composer/internal/sse"
	"github.com/debemdeboas/composer/internal/util"
)

const maxImageBytes = 10 << 20

type Handler struct {
	registry *Registry
	clients  *sse.SSEClients
}

func NewHandler(registry *Registry, clients *sse.SSEClients) *Handler {
	return &Handler{
		registry: registry,
		clients:  clients,
	}
}

// Register mounts every draft route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(routes.NewDraft, h.ServeNewDraft)
	mux.HandleFunc(routes.APIDraft, h.ServeDraft)
	mux.HandleFunc(routes.APIDraftTitle, h.ServeTitle)
	mux.HandleFunc(routes.APIDraftCommands, h.ServeCommand)
	mux.HandleFunc(routes.APIDraftAssist, h.ServeAssist)
	mux.HandleFunc(routes.APIDraftPublish, h.ServePublish)
	mux.HandleFunc(routes.APIDraftImages, h.ServeImage)
	mux.HandleFunc(routes.APIAssistActions, h.ServeActions)
	if h.clients != nil {
		mux.Handle(routes.SSEPath, h.clients)
	}
}

type draftResponse struct {
	ID       model.DraftID   `json:"id"`
	Title    string          `json:"title"`
	BodyHTML string          `json:"body_html"`
	BodyJSON json.RawMessage `json:"body_json"`
	Stats    document.Stats  `json:"stats"`
	Assist   assist.State    `json:"assist"`

	Selection *document.Range `json:"selection,omitempty"`
}

func newDraftResponse(s *Session) draftResponse {
	d := s.Draft()
	resp := draftResponse{
		ID:       d.ID,
		Title:    d.Title,
		BodyHTML: d.BodyHTML,
		BodyJSON: d.BodyJSON,
		Stats:    s.Stats(),
		Assist:   s.AssistState(),
	}
	if sel, ok := s.Selection(); ok {
		resp.Selection = &sel
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func isRemoteError(err error) bool {
	var transport *remote.TransportError
	var rejection *remote.RejectionError
	return errors.As(err, &transport) || errors.As(err, &rejection)
}

// session resolves the {id} path value, writing the error response itself on failure.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := model.DraftID(r.PathValue("id"))
	if !id.Valid() {
		http.Error(w, config.HTTPErrInvalidDraftID, http.StatusBadRequest)
		return nil, false
	}

	s, err := h.registry.Get(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("draft_id", string(id)).Msg("Failed to open draft")
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) ServeNewDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	id := model.NewDraftID()
	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieDraftId,
		Value:    string(id),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	zerolog.Ctx(r.Context()).Info().Str("draft_id", string(id)).Msg("Draft created")
	writeJSON(w, http.StatusCreated, struct {
		ID model.DraftID `json:"id"`
	}{ID: id})
}

func (h *Handler) ServeDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	// The tag covers the whole response, so selection and assist changes are visible to pollers.
	payload, err := json.Marshal(newDraftResponse(s))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	etag := `"` + util.ContentHash(payload) + `"`
	if r.Header.Get(config.HIfNoneMatch) == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set(config.HETag, etag)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *Handler) ServeTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var body struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Title == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "title is required", Field: "title"})
		return
	}

	s.SetTitle(*body.Title)
	writeJSON(w, http.StatusOK, newDraftResponse(s))
}

func (h *Handler) ServeCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.Apply(cmd); err != nil {
		if IsClientError(err) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		zerolog.Ctx(r.Context()).Error().Err(err).Str("op", cmd.Op).Msg("Command failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, newDraftResponse(s))
}

func (h *Handler) ServeAssist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	action, err := assist.ParseAction(r.PathValue("action"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	l := zerolog.Ctx(r.Context()).With().Str("draft_id", string(s.ID())).Str("action", string(action)).Logger()

	// A client disconnect must not abort a request the remote may already be serving.
	err = s.Dispatch(context.WithoutCancel(r.Context()), action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newDraftResponse(s))
	case errors.Is(err, assist.ErrBusy):
		writeJSON(w, http.StatusAccepted, s.AssistState())
	case errors.Is(err, ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case isRemoteError(err), errors.Is(err, assist.ErrEmptyResult), errors.Is(err, document.ErrEmptyFragment):
		l.Warn().Err(err).Msg("Assist failed")
		writeError(w, http.StatusBadGateway, err)
	default:
		l.Error().Err(err).Msg("Assist failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) ServeActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, assist.Actions())
}

func (h *Handler) ServePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	l := zerolog.Ctx(r.Context()).With().Str("draft_id", string(s.ID())).Logger()

	err := s.Publish(context.WithoutCancel(r.Context()))
	var validation *publish.ValidationError
	switch {
	case err == nil:
		h.registry.Evict(s.ID())
		l.Info().Msg("Draft published")
		writeJSON(w, http.StatusOK, struct {
			ID        model.DraftID `json:"id"`
			Published bool          `json:"published"`
		}{ID: s.ID(), Published: true})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, publish.ErrInFlight):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case isRemoteError(err):
		l.Warn().Err(err).Msg("Publish failed")
		writeError(w, http.StatusBadGateway, err)
	default:
		l.Error().Err(err).Msg("Publish failed")
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, config.HTTPErrMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<10)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	contentType := header.Header.Get(config.HCType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	url, err := s.InsertImage(r.Context(), data, contentType, r.FormValue("alt"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, struct {
			URL   string        `json:"url"`
			Draft draftResponse `json:"draft"`
		}{URL: url, Draft: newDraftResponse(s)})
	case errors.Is(err, media.ErrDisabled):
		writeError(w, http.StatusNotImplemented, err)
	case errors.Is(err, media.ErrUnsupportedType):
		writeError(w, http.StatusUnsupportedMediaType, err)
	case IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Image upload failed")
		writeError(w, http.StatusBadGateway, err)
	}
}
