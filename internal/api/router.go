package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yourview/yourview/internal/routes"
	"github.com/yourview/yourview/internal/storage"
	"github.com/yourview/yourview/internal/theme"
)

// Deps are the collaborators the API serves.
type Deps struct {
	Canopy  CanopyLookup
	Uploads Uploader
	Media   storage.Provider
	Theme   *theme.Theme
	Routes  *routes.Table

	// AuthEnabled guards the upload endpoints with Bearer Token.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// AllowedOrigins configures CORS; empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates a chi router with all API routes mounted. Canopy,
// theme and route lookups are public; uploads and events honour the auth
// mode.
func NewRouter(deps Deps) chi.Router {
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(deps.AllowedOrigins))

	// Canopy.
	r.Get("/canopy", h.GetCanopy)
	r.Get("/suburbs/normalize", h.NormalizeSuburb)

	// Site configuration.
	r.Get("/theme", h.GetTheme)
	r.Get("/routes", h.ListRoutes)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(deps.AuthEnabled, deps.Token))

		r.Post("/uploads", h.CreateUpload)
		r.Get("/uploads", h.ListUploads)

		if deps.Events != nil {
			r.Get("/events", deps.Events.ServeHTTP)
		}
	})

	return r
}

// MediaHandler serves stored upload objects at /media/*.
func MediaHandler(store storage.Provider) http.HandlerFunc {
	h := &Handler{store: store}
	return h.ServeMedia
}
