package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/service/analytics"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/pkg/api"
)

// statusOf maps a failed envelope to its HTTP status. Aggregation failures
// stay 200 so the dashboard can render the envelope's indicator.
func statusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusOK
}

func respond[T any](rt *Router, w http.ResponseWriter, resp analytics.Response[T]) {
	status := http.StatusOK
	if !resp.Success {
		status = statusOf(resp.Kind())
	}
	if err := api.JSON(w, status, resp); err != nil {
		rt.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// healthCheck handles GET /health.
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
	if rt.opts.BreakerState != nil {
		resp.Breaker = rt.opts.BreakerState()
	}
	api.Success(w, http.StatusOK, resp)
}

func (rt *Router) tableCounts(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetAllTableCounts(r.Context()))
}

func (rt *Router) tableCount(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetTableCount(r.Context(), chi.URLParam(r, "table")))
}

func (rt *Router) totalCount(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetTotalCount(r.Context()))
}

func (rt *Router) tableSizes(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetTableSizes(r.Context()))
}

func (rt *Router) dailyStats(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetDailyStats(r.Context()))
}

func (rt *Router) windowCounts(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetWindowCounts(r.Context(), analytics.Window(chi.URLParam(r, "window"))))
}

// growth handles GET /analytics/growth?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (rt *Router) growth(w http.ResponseWriter, r *http.Request) {
	q := api.GrowthQuery{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if err := rt.validate.Struct(q); err != nil {
		api.Error(w, http.StatusBadRequest, apperrors.CodeInvalidRange, "dates must be YYYY-MM-DD")
		return
	}
	from, err := analytics.ParseDate(q.From, rt.opts.Location)
	if err != nil {
		respond(rt, w, analytics.Fail[analytics.GrowthReport](err))
		return
	}
	to, err := analytics.ParseDate(q.To, rt.opts.Location)
	if err != nil {
		respond(rt, w, analytics.Fail[analytics.GrowthReport](err))
		return
	}
	respond(rt, w, rt.svc.GetTableWiseCountsWithGrowth(r.Context(), from, to))
}

func (rt *Router) summary(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.GetDashboardSummary(r.Context()))
}

func (rt *Router) refreshCache(w http.ResponseWriter, r *http.Request) {
	resp := rt.svc.RefreshCache(r.Context())
	rt.logger.Info("Cache refreshed by admin request",
		zap.Bool("broadcast", resp.Data.Broadcast),
		zap.String("remote_addr", r.RemoteAddr),
	)
	respond(rt, w, resp)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.CacheStats())
}

func (rt *Router) cacheEfficiency(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.CacheEfficiency())
}

func (rt *Router) cacheHealth(w http.ResponseWriter, r *http.Request) {
	respond(rt, w, rt.svc.CacheHealth())
}
