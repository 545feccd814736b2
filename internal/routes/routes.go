// Package routes holds the validated table of page routes and resolves
// request paths to lazily built page handlers.
package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Loader builds a page handler. It runs on the first visit to the route.
type Loader func() (http.Handler, error)

// Route maps a URL path to a named page.
type Route struct {
	Path  string
	Name  string
	Title string
	Load  Loader
}

// ErrUnknownRoute is returned by URL for names not in the table.
var ErrUnknownRoute = errors.New("routes: unknown route name")

// Table is an ordered, validated set of routes. It is immutable after New.
type Table struct {
	routes []Route
	byPath map[string]int
	byName map[string]int
	pages  []*lazyPage
}

// New validates routes and builds a table. Empty or relative paths, missing
// names or loaders, and duplicate paths or names are rejected.
func New(routes ...Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, len(routes)),
		byPath: make(map[string]int, len(routes)),
		byName: make(map[string]int, len(routes)),
		pages:  make([]*lazyPage, len(routes)),
	}
	var errs []error
	for i, r := range routes {
		switch {
		case r.Path == "" || !strings.HasPrefix(r.Path, "/"):
			errs = append(errs, fmt.Errorf("route %d: path %q must start with /", i, r.Path))
			continue
		case r.Name == "":
			errs = append(errs, fmt.Errorf("route %d (%s): name is required", i, r.Path))
			continue
		case r.Load == nil:
			errs = append(errs, fmt.Errorf("route %q: loader is required", r.Name))
			continue
		}
		if j, dup := t.byPath[r.Path]; dup {
			errs = append(errs, fmt.Errorf("route %q: duplicate path %q (already used by %q)", r.Name, r.Path, t.routes[j].Name))
			continue
		}
		if j, dup := t.byName[r.Name]; dup {
			errs = append(errs, fmt.Errorf("route %q: duplicate name (paths %q and %q)", r.Name, t.routes[j].Path, r.Path))
			continue
		}
		t.routes[i] = r
		t.byPath[r.Path] = i
		t.byName[r.Name] = i
		t.pages[i] = &lazyPage{load: r.Load}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// MustNew is New that panics on an invalid table.
func MustNew(routes ...Route) *Table {
	t, err := New(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Routes returns a copy of the routes in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Resolve returns the route registered for path.
func (t *Table) Resolve(path string) (Route, bool) {
	i, ok := t.byPath[path]
	if !ok {
		return Route{}, false
	}
	return t.routes[i], true
}

// URL returns the path of the route called name.
func (t *Table) URL(name string) (string, error) {
	i, ok := t.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRoute, name)
	}
	return t.routes[i].Path, nil
}

// Loaded reports whether the page for name has been built.
func (t *Table) Loaded(name string) bool {
	i, ok := t.byName[name]
	if !ok {
		return false
	}
	return t.pages[i].loaded()
}

// Mount registers a GET handler for each route on r. Unmatched paths fall
// through to r's not-found handler.
func (t *Table) Mount(r chi.Router, logger *slog.Logger) {
	for i, route := range t.routes {
		r.Get(route.Path, t.pages[i].handler(route, logger))
	}
}

type lazyPage struct {
	mu   sync.Mutex
	load Loader
	h    http.Handler
}

func (p *lazyPage) loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.h != nil
}

// get builds the page on first use. A failed build is retried on the next
// request.
func (p *lazyPage) get() (http.Handler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.h != nil {
		return p.h, nil
	}
	h, err := p.load()
	if err != nil {
		return nil, err
	}
	p.h = h
	return h, nil
}

func (p *lazyPage) handler(route Route, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := p.get()
		if err != nil {
			logger.Error("page load failed",
				slog.String("route", route.Name),
				slog.String("error", err.Error()))
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}
		h.ServeHTTP(w, r)
	}
}
