// Package pages renders the viewer's HTML pages and declares the route table
// that serves them.
package pages

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourview/yourview/internal/canopy"
	"github.com/yourview/yourview/internal/routes"
	"github.com/yourview/yourview/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

// Route names.
const (
	Landing    = "landing"
	Canopy     = "canopy"
	YourWindow = "your-window"
	About      = "about"
)

// Lookuper resolves a suburb label to canopy data.
type Lookuper interface {
	Lookup(ctx context.Context, raw string) canopy.Result
}

// Site holds what page handlers need to render.
type Site struct {
	theme  *theme.Theme
	canopy Lookuper
	logger *slog.Logger
	table  *routes.Table
}

// Build creates the site and its validated route table.
func Build(th *theme.Theme, lk Lookuper, logger *slog.Logger) (*routes.Table, error) {
	s := &Site{theme: th, canopy: lk, logger: logger}
	t, err := routes.New(s.routes()...)
	if err != nil {
		return nil, fmt.Errorf("pages: %w", err)
	}
	s.table = t
	return t, nil
}

func (s *Site) routes() []routes.Route {
	return []routes.Route{
		{Path: "/", Name: Landing, Title: "Home", Load: s.static(Landing, "Home", "landing.html")},
		{Path: "/canopy", Name: Canopy, Title: "Canopy", Load: s.canopyPage},
		{Path: "/your-window", Name: YourWindow, Title: "Your Window", Load: s.static(YourWindow, "Your Window", "your_window.html")},
		{Path: "/about", Name: About, Title: "About", Load: s.static(About, "About", "about.html")},
	}
}

func parse(page string) (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
}

func (s *Site) static(name, title, page string) routes.Loader {
	return func() (http.Handler, error) {
		tmpl, err := parse(page)
		if err != nil {
			return nil, err
		}
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			s.render(w, tmpl, s.view(name, title))
		}), nil
	}
}

func (s *Site) canopyPage() (http.Handler, error) {
	tmpl, err := parse("canopy.html")
	if err != nil {
		return nil, err
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := s.view(Canopy, "Canopy")
		v.Query = r.URL.Query().Get("suburb")
		if strings.TrimSpace(v.Query) != "" {
			res := s.canopy.Lookup(r.Context(), v.Query)
			v.Lookup = &lookupView{
				Key:    res.Key,
				Found:  res.Found(),
				Failed: res.Status == canopy.StatusFailed,
				Record: indent(res.Record),
			}
		}
		s.render(w, tmpl, v)
	}), nil
}

func (s *Site) render(w http.ResponseWriter, tmpl *template.Template, v view) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", v); err != nil {
		s.logger.Error("render page failed", slog.String("page", v.name), slog.String("error", err.Error()))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

type navItem struct {
	Path   string
	Title  string
	Active bool
}

type lookupView struct {
	Key    string
	Found  bool
	Failed bool
	Record string
}

type view struct {
	Title   string
	Palette theme.Palette
	Nav     []navItem
	Query   string
	Lookup  *lookupView

	name string
	site *Site
}

func (s *Site) view(name, title string) view {
	v := view{Title: title, Palette: s.theme.Active(), name: name, site: s}
	for _, r := range s.table.Routes() {
		v.Nav = append(v.Nav, navItem{Path: r.Path, Title: r.Title, Active: r.Name == name})
	}
	return v
}

// URL returns the path of a named route, or "#" if it does not exist.
func (v view) URL(name string) string {
	p, err := v.site.table.URL(name)
	if err != nil {
		return "#"
	}
	return p
}

// Icon returns the CSS classes for a named icon in the configured set.
func (v view) Icon(name string) string {
	icons := v.site.theme.Icons
	glyph, ok := icons.Aliases[name]
	if !ok {
		glyph = icons.DefaultSet + "-" + name
	}
	return icons.DefaultSet + " " + glyph
}

func indent(rec canopy.Record) string {
	if len(rec) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, rec, "", "  "); err != nil {
		return string(rec)
	}
	return buf.String()
}
