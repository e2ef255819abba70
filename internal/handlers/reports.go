package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/diagnostics"
	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/httpx"
	"github.com/diewo77/go-honoraires/internal/i18n"
	"github.com/diewo77/go-honoraires/internal/models"
	"github.com/diewo77/go-honoraires/internal/pricing"
	"github.com/diewo77/go-honoraires/internal/restructure"
	"github.com/diewo77/go-honoraires/internal/services"
	"github.com/diewo77/go-honoraires/internal/validation"
)

// ReportHandler serves the read-mostly JSON reports.
type ReportHandler struct {
	db         *gorm.DB
	log        *zap.Logger
	audit      *services.AuditService
	simulation *services.SimulationService
	planner    *services.RestructureService
	runs       *services.RunGuard
}

// NewReportHandler builds the handler. A nil runs gets a guard with the
// default stale delay.
func NewReportHandler(db *gorm.DB, log *zap.Logger, classifier *fees.Classifier, runs *services.RunGuard) *ReportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if runs == nil {
		runs = services.NewRunGuard(db, log)
	}
	return &ReportHandler{
		db:         db,
		log:        log,
		audit:      services.NewAuditService(db, log, classifier),
		simulation: services.NewSimulationService(db, log, classifier),
		planner:    services.NewRestructureService(db, log, classifier),
		runs:       runs,
	}
}

func (h *ReportHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type axeView struct {
	Code     fees.Axe `json:"code"`
	Label    string   `json:"label"`
	Unique   bool     `json:"unique"`
	Variable bool     `json:"variable"`
	Social   bool     `json:"social"`
}

// Axes lists the fee axes with their localized label.
func (h *ReportHandler) Axes(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFrom(r.Context())
	out := make([]axeView, 0, len(fees.Axes()))
	for _, a := range fees.Axes() {
		out = append(out, axeView{
			Code: a, Label: i18n.T(lang, a.String()),
			Unique: a.Unique(), Variable: a.Variable(), Social: a.Social(),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": out})
}

type anomalyView struct {
	diagnostics.Anomaly
	TypeLabel     string `json:"type_label"`
	SeverityLabel string `json:"severity_label"`
}

type anomalyReport struct {
	Items  []anomalyView                `json:"items"`
	Counts map[diagnostics.Severity]int `json:"counts"`
}

// Anomalies audits every active subscription. Optional query filters:
// cabinet and severity.
func (h *ReportHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	h.writeAnomalies(w, r, services.LineFilter{Cabinet: r.URL.Query().Get("cabinet"), ActiveOnly: true})
}

func (h *ReportHandler) ClientAnomalies(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	h.writeAnomalies(w, r, services.LineFilter{ClientID: id, ActiveOnly: true})
}

func (h *ReportHandler) writeAnomalies(w http.ResponseWriter, r *http.Request, f services.LineFilter) {
	report, err := h.audit.Run(r.Context(), f)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	lang := i18n.LangFrom(r.Context())
	severity := diagnostics.Severity(r.URL.Query().Get("severity"))
	out := anomalyReport{Items: make([]anomalyView, 0, len(report.Anomalies)), Counts: report.Counts}
	for _, a := range report.Anomalies {
		if severity != "" && a.Severity != severity {
			continue
		}
		out.Items = append(out.Items, anomalyView{
			Anomaly:       a,
			TypeLabel:     i18n.T(lang, string(a.Type)),
			SeverityLabel: i18n.T(lang, string(a.Severity)),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type simulationRequest struct {
	Parameters  pricing.ParametersFile `json:"parameters"`
	Excluded    []uint                 `json:"excluded"`
	SaveTariffs bool                   `json:"save_tariffs"`
}

type simulationResponse struct {
	services.SimulationResult
	RunID string                 `json:"run_id,omitempty"`
	Saved *services.BatchSummary `json:"saved,omitempty"`
}

// Simulate runs a pricing simulation. With save_tariffs the computed unit
// prices become the clients' reference tariffs, under a simulate run.
func (h *ReportHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	lang := i18n.LangFrom(r.Context())
	var req simulationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", i18n.T(lang, "invalid_json"), err.Error())
		return
	}
	params, err := req.Parameters.Parameters()
	if err != nil {
		var v validation.Violations
		if errors.As(err, &v) {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_parameters", i18n.T(lang, "invalid_parameters"), v)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, "invalid_parameters", i18n.T(lang, "invalid_parameters"), err.Error())
		return
	}

	if !req.SaveTariffs {
		res, err := h.simulation.Run(r.Context(), params, req.Excluded)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, simulationResponse{SimulationResult: res})
		return
	}

	var resp simulationResponse
	_, err = h.runs.Do(r.Context(), "simulate", "", func(ctx context.Context, runID string) (services.BatchSummary, error) {
		res, err := h.simulation.Run(ctx, params, req.Excluded)
		if err != nil {
			return services.BatchSummary{}, err
		}
		saved := h.simulation.SaveTariffs(ctx, res.Clients, runID)
		resp = simulationResponse{SimulationResult: res, RunID: runID, Saved: &saved}
		return saved, nil
	})
	if errors.Is(err, services.ErrRunInProgress) {
		httpx.JSONError(w, http.StatusConflict, "run_in_progress", i18n.T(lang, "run_in_progress"), nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type restructuringView struct {
	restructure.ClientPlan
	Counts map[restructure.Action]int `json:"counts"`
}

func (h *ReportHandler) Restructuring(w http.ResponseWriter, r *http.Request) {
	id, ok := h.clientID(w, r)
	if !ok {
		return
	}
	plan, err := h.planner.Plan(r.Context(), id)
	if errors.Is(err, services.ErrClientNotFound) {
		lang := i18n.LangFrom(r.Context())
		httpx.JSONError(w, http.StatusNotFound, "client_not_found", i18n.T(lang, "client_not_found"), nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, restructuringView{ClientPlan: plan, Counts: plan.Counts()})
}

// clientID parses the {id} path parameter and checks the client exists.
// It writes the error response itself.
func (h *ReportHandler) clientID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	lang := i18n.LangFrom(r.Context())
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", i18n.T(lang, "invalid_id"), nil)
		return 0, false
	}
	var n int64
	if err := h.db.WithContext(r.Context()).Model(&models.Client{}).Where("id = ?", id).Count(&n).Error; err != nil {
		h.internalError(w, r, err)
		return 0, false
	}
	if n == 0 {
		httpx.JSONError(w, http.StatusNotFound, "client_not_found", i18n.T(lang, "client_not_found"), nil)
		return 0, false
	}
	return uint(id), true
}

func (h *ReportHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", i18n.T(i18n.LangFrom(r.Context()), "internal_error"), nil)
}
