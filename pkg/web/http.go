// Package web serves the intake and results pages and the JSON prediction API.
package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/readmit-ai/hrp/pkg/catalog"
	"github.com/readmit-ai/hrp/pkg/common/logger"
	"github.com/readmit-ai/hrp/pkg/common/models"
	"github.com/readmit-ai/hrp/pkg/handoff"
	"github.com/readmit-ai/hrp/pkg/intake"
	"github.com/readmit-ai/hrp/pkg/observability/metrics"
	"github.com/readmit-ai/hrp/pkg/results"
)

//go:embed templates/*.html
var templateFS embed.FS

// VisitCookie carries the handoff ID from the intake submit to the results page.
const VisitCookie = "hrp_visit"

type Options struct {
	Catalog      catalog.Catalog
	Handoffs     handoff.Store
	Visits       *results.Registry
	LoadingGrace time.Duration
	// Refresh is the loading page's auto-refresh interval in seconds.
	Refresh      int
	CookieSecure bool
}

type HTTPHandler struct {
	opts Options
	tmpl *template.Template
}

type page struct {
	Title         string
	Refresh       int
	Record        models.IntakeRecord
	Catalog       catalog.Catalog
	Positions     map[string]int
	DiagnosisFull bool
	Error         string
	Result        *models.PredictionResult
}

func NewHTTPHandler(opts Options) (*HTTPHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if opts.Refresh <= 0 {
		opts.Refresh = 1
	}
	return &HTTPHandler{opts: opts, tmpl: tmpl}, nil
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/", h.handleIntake).Methods(http.MethodGet)
	router.HandleFunc("/", h.handleIntakePost).Methods(http.MethodPost)
	router.HandleFunc("/results", h.handleResults).Methods(http.MethodGet)
	router.HandleFunc("/Results", h.handleResults).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleIntake(w http.ResponseWriter, r *http.Request) {
	// leaving the results page cancels whatever it was waiting for
	if id := visitID(r); id != "" {
		h.opts.Visits.Release(id)
		h.clearCookie(w)
	}
	h.renderIntake(w, intake.NewForm())
}

func (h *HTTPHandler) handleIntakePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Log.WithError(err).Warn("invalid intake form")
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	form := intake.FromValues(r.PostForm)

	if label := r.PostForm.Get("toggle"); label != "" {
		if h.opts.Catalog.IsDiagnosis(label) {
			form.ToggleDiagnosis(label)
		}
		h.renderIntake(w, form)
		return
	}

	if id := visitID(r); id != "" {
		h.opts.Visits.Release(id)
	}
	id, err := form.Submit(r.Context(), h.opts.Handoffs)
	if err != nil {
		logger.Log.WithError(err).Error("failed to submit intake")
		http.Error(w, "failed to submit intake", http.StatusInternalServerError)
		return
	}
	metrics.RecordIntakeSubmission()

	http.SetCookie(w, &http.Cookie{
		Name:     VisitCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/results", http.StatusSeeOther)
}

func (h *HTTPHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := visitID(r)

	if id != "" {
		if v, ok := h.opts.Visits.Get(id); ok {
			h.renderVisit(w, r, v)
			return
		}
	}

	var record *models.IntakeRecord
	if id != "" {
		rec, err := h.opts.Handoffs.Take(ctx, id)
		switch {
		case err == nil:
			record = &rec
		case !errors.Is(err, handoff.ErrNotFound):
			logger.Log.WithError(err).WithField("handoff_id", id).Error("failed to read handoff")
		}
	}

	if record == nil {
		// Nothing to predict on. The visit settles immediately without a call.
		v := h.opts.Visits.NewVisit(uuid.New().String(), nil)
		defer v.Close()
		v.Start(ctx)
		snap := v.Wait(ctx)
		h.clearCookie(w)
		h.renderSnapshot(w, snap)
		return
	}

	h.renderVisit(w, r, h.opts.Visits.Open(ctx, id, record))
}

// renderVisit waits briefly for fast responses, then shows either the loading
// page or the final view. A visit is released once its final view is served.
func (h *HTTPHandler) renderVisit(w http.ResponseWriter, r *http.Request, v *results.Visit) {
	if h.opts.LoadingGrace > 0 {
		timer := time.NewTimer(h.opts.LoadingGrace)
		select {
		case <-v.Done():
		case <-timer.C:
		case <-r.Context().Done():
		}
		timer.Stop()
	}

	snap := v.Snapshot()
	if snap.State.Terminal() {
		h.opts.Visits.Release(v.ID())
		h.clearCookie(w)
	}
	h.renderSnapshot(w, snap)
}

func (h *HTTPHandler) renderSnapshot(w http.ResponseWriter, snap results.Snapshot) {
	switch snap.State {
	case results.StateSuccess:
		h.render(w, http.StatusOK, "success", page{Title: "Prediction Result", Result: snap.Result})
	case results.StateError:
		h.render(w, http.StatusOK, "error", page{Title: "Prediction Error", Error: snap.Error})
	default:
		h.render(w, http.StatusOK, "loading", page{Title: "Processing Prediction", Refresh: h.opts.Refresh})
	}
}

func (h *HTTPHandler) renderIntake(w http.ResponseWriter, form *intake.Form) {
	rec := form.Record()
	positions := make(map[string]int, len(rec.Diagnosis))
	for i, d := range rec.Diagnosis {
		positions[d] = i + 1
	}
	h.render(w, http.StatusOK, "intake", page{
		Title:         "Hospital Readmission Predictor",
		Record:        rec,
		Catalog:       h.opts.Catalog,
		Positions:     positions,
		DiagnosisFull: form.DiagnosisFull(),
	})
}

func (h *HTTPHandler) render(w http.ResponseWriter, status int, name string, data page) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Log.WithError(err).WithField("template", name).Error("failed to render page")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *HTTPHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func visitID(r *http.Request) string {
	c, err := r.Cookie(VisitCookie)
	if err != nil {
		return ""
	}
	return c.Value
}
