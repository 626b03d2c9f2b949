package handler

import (
	"context"
	"net/http"

	"gold-rush/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type MetalQuerier interface {
	LatestPerSymbol(ctx context.Context) ([]*domain.PriceSnapshot, error)
	HistoryForSymbol(ctx context.Context, symbol string, limit int) ([]*domain.PriceSnapshot, error)
	RecentlyFetched(ctx context.Context, limit int) ([]*domain.PriceSnapshot, error)
}

type BatchRunner interface {
	Run(ctx context.Context, symbols []string, apiKey string) (*domain.BatchResult, error)
}

type Handler struct {
	tracer trace.Tracer
	query  MetalQuerier

	runner         BatchRunner
	ingestSymbols  []string
	providerAPIKey string
	adminAPIKey    string

	metrics http.Handler
}

func New(tracer trace.Tracer, query MetalQuerier) *Handler {
	return &Handler{
		tracer: tracer,
		query:  query,
	}
}

// SetIngestion enables POST /api/metals/ingest. symbols is the batch used
// when the request names none.
func (h *Handler) SetIngestion(runner BatchRunner, symbols []string, providerAPIKey string) {
	h.runner = runner
	h.ingestSymbols = append([]string(nil), symbols...)
	h.providerAPIKey = providerAPIKey
}

// SetAdminAPIKey guards mutating routes with X-API-Key. Empty disables the check.
func (h *Handler) SetAdminAPIKey(key string) {
	h.adminAPIKey = key
}

func (h *Handler) SetMetricsHandler(metrics http.Handler) {
	h.metrics = metrics
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	metals := r.Group("/api/metals")
	metals.GET("/latest", h.GetLatest)
	metals.GET("/history", h.GetHistory)
	metals.GET("/recent", h.GetRecent)
	metals.POST("/ingest", APIKeyAuth(h.adminAPIKey), h.TriggerIngestion)
}
