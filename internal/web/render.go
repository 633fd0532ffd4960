package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"dashboard", "users", "create_user", "settings"}

// view is the data shared by every page
type view struct {
	Title       string
	Nav         string
	Flash       *session.Flash
	AIAvailable bool
}

var funcs = template.FuncMap{
	"statusClass": statusClass,
	"sparkline":   sparkline,
	"pathEscape":  url.PathEscape,
	"join":        strings.Join,
	"fieldError": func(errs map[string]string, key string) string {
		return errs[key]
	},
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

// render executes a page into a buffer first so a template error never
// produces a half-written page
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := s.templates[page]
	if !ok {
		s.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("failed to render page",
			slog.String("page", page),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write page", slog.String("page", page), slog.String("error", err.Error()))
	}
}

func statusClass(status domain.ServerStatus) string {
	switch status {
	case domain.StatusOnline:
		return "online"
	case domain.StatusMaintenance:
		return "maintenance"
	default:
		return "offline"
	}
}

const (
	sparkWidth  = 120
	sparkHeight = 32
)

// sparkline converts a usage history into SVG polyline points
func sparkline(history []domain.StatsPoint) string {
	switch len(history) {
	case 0:
		return ""
	case 1:
		y := sparkY(history[0].Usage)
		return fmt.Sprintf("0,%d %d,%d", y, sparkWidth, y)
	}

	points := make([]string, len(history))
	step := float64(sparkWidth) / float64(len(history)-1)
	for i, p := range history {
		points[i] = fmt.Sprintf("%.1f,%d", float64(i)*step, sparkY(p.Usage))
	}
	return strings.Join(points, " ")
}

func sparkY(usage int) int {
	usage = max(0, min(100, usage))
	return sparkHeight - usage*sparkHeight/100
}
