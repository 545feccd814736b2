package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yourview/yourview/internal/canopy"
	"github.com/yourview/yourview/internal/checksum"
	"github.com/yourview/yourview/internal/models"
	"github.com/yourview/yourview/internal/routes"
	"github.com/yourview/yourview/internal/storage"
	"github.com/yourview/yourview/internal/suburb"
	"github.com/yourview/yourview/internal/theme"
	"github.com/yourview/yourview/internal/upload"
)

// CanopyLookup resolves suburb labels to canopy records.
type CanopyLookup interface {
	Lookup(ctx context.Context, raw string) canopy.Result
}

// Uploader stores and lists uploads.
type Uploader interface {
	Upload(ctx context.Context, filename, folder string, data []byte) (*upload.Receipt, error)
	List(ctx context.Context, limit, offset int) ([]models.Upload, int, error)
	MaxSize() int64
}

// Handler holds API route handlers.
type Handler struct {
	canopy  CanopyLookup
	uploads Uploader
	store   storage.Provider
	theme   *theme.Theme
	routes  *routes.Table
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		canopy:  deps.Canopy,
		uploads: deps.Uploads,
		store:   deps.Media,
		theme:   deps.Theme,
		routes:  deps.Routes,
	}
}

// GetCanopy handles GET /api/canopy.
//
//	@Summary		Canopy cover statistics for a suburb
//	@Tags			canopy
//	@Produce		json
//	@Param			suburb	query		string	true	"Suburb label, e.g. Richmond, VIC"
//	@Success		200		{object}	CanopyResponse
//	@Failure		404		{object}	CanopyErrorResponse
//	@Failure		502		{object}	CanopyErrorResponse
//	@Router			/canopy [get]
func (h *Handler) GetCanopy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("suburb")
	if strings.TrimSpace(raw) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'suburb' is required"))
		return
	}

	res := h.canopy.Lookup(r.Context(), raw)
	switch res.Status {
	case canopy.StatusFound:
		writeJSON(w, http.StatusOK, CanopyResponse{
			Suburb: res.Suburb,
			Key:    res.Key,
			Status: res.Status.String(),
			Record: res.Record,
		})
	case canopy.StatusNotFound:
		writeJSON(w, http.StatusNotFound, CanopyErrorResponse{
			Error: "no canopy data for suburb", Suburb: res.Suburb, Key: res.Key, Status: res.Status.String(),
		})
	default:
		writeJSON(w, http.StatusBadGateway, CanopyErrorResponse{
			Error: "canopy data unavailable", Suburb: res.Suburb, Key: res.Key, Status: res.Status.String(),
		})
	}
}

// NormalizeSuburb handles GET /api/suburbs/normalize.
//
//	@Summary		Show the lookup key derived from a suburb label
//	@Tags			canopy
//	@Produce		json
//	@Param			q	query		string	true	"Suburb label"
//	@Success		200	{object}	NormalizeResponse
//	@Router			/suburbs/normalize [get]
func (h *Handler) NormalizeSuburb(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, NormalizeResponse{Input: q, Key: suburb.Normalize(q)})
}

// GetTheme handles GET /api/theme.
func (h *Handler) GetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.theme)
}

// ListRoutes handles GET /api/routes.
func (h *Handler) ListRoutes(w http.ResponseWriter, _ *http.Request) {
	resp := RoutesResponse{Routes: []RouteItem{}}
	if h.routes != nil {
		for _, rt := range h.routes.Routes() {
			resp.Routes = append(resp.Routes, RouteItem{Path: rt.Path, Name: rt.Name, Title: rt.Title})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateUpload handles POST /api/uploads (multipart/form-data, field "file",
// optional field "folder").
//
//	@Summary		Upload a JPG or PNG photo
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Param			folder	formData	string	false	"Key prefix"	default(YourWindow)
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Failure		504		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/uploads [post]
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.uploads.MaxSize()
	// Multipart framing needs headroom beyond the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	receipt, err := h.uploads.Upload(r.Context(), header.Filename, r.FormValue("folder"), data)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("upload failed", slog.String("filename", header.Filename), slog.String("error", err.Error()))
		}
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// ListUploads handles GET /api/uploads.
//
//	@Summary		List uploads, newest first
//	@Tags			uploads
//	@Produce		json
//	@Param			limit	query		int	false	"Page size"
//	@Param			offset	query		int	false	"Page offset"
//	@Success		200		{object}	UploadListResponse
//	@Security		BearerAuth
//	@Router			/uploads [get]
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.uploads.List(r.Context(), limit, offset)
	if err != nil {
		slog.Error("list uploads failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, UploadListResponse{Uploads: items, Total: total})
}

// ServeMedia handles GET /media/*.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" || storage.IsTemp(key[strings.LastIndex(key, "/")+1:]) {
		http.NotFound(w, r)
		return
	}
	abs, err := h.store.Path(key)
	if err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	data, err := h.store.Read(key)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("ETag", checksum.Quote(checksum.Sum(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), bytes.NewReader(data))
}
