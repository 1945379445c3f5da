package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/atlasclaim/service/fleet"
	"github.com/brojonat/atlasclaim/service/rewards"
	"github.com/brojonat/atlasclaim/service/state"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

type dashboardData struct {
	Owner      string
	CanClaim   bool
	Refreshing bool
	Loading    bool
	Cards      []fleet.Card
	Totals     rewards.Totals
	Notice     *state.Modal
	Waiting    []state.WaitingSignature
	Streaming  bool
}

// handleDashboard serves the fleet dashboard for the {owner} path value,
// or for defaultOwner when the path has none.
func handleDashboard(renderer *TemplateRenderer, d Deps, defaultOwner string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		if owner == "" {
			owner = defaultOwner
		}

		data := dashboardData{
			Owner:     owner,
			Loading:   d.App.Loading(),
			Waiting:   d.App.WaitingSignatures(),
			Streaming: d.Stream != nil,
		}
		if d.Claimer != nil && owner != "" && d.Claimer.Owner() == owner {
			data.CanClaim = true
		}
		if m, ok := d.App.Modal(); ok {
			data.Notice = &m
		}

		if owner != "" {
			if err := validateAddress(owner); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if !d.Fleets.Has(owner) {
				if err := d.Refresher.Refresh(r.Context(), owner); err != nil {
					renderer.logger.ErrorContext(r.Context(), "failed to load fleets", "owner", owner, "error", err)
				}
			}
			data.Cards = fleet.Cards(d.Fleets.Fleets(owner), d.App.IsSelected)
			data.Totals = d.Totals.Totals(owner)
		}
		data.Refreshing = d.App.Refreshing()

		if err := renderer.Render(w, "dashboard.html", data); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	})
}
