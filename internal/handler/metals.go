package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"gold-rush/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// SnapshotView is the wire form of a stored snapshot.
type SnapshotView struct {
	ID                   int64   `json:"id"`
	Provider             string  `json:"provider"`
	ProviderFunction     string  `json:"providerFunction"`
	Symbol               string  `json:"symbol"`
	MetalName            *string `json:"metalName"`
	QuoteCurrency        string  `json:"quoteCurrency"`
	Price                string  `json:"price" example:"2000.00000000"`
	NominalRaw           string  `json:"nominalRaw" example:"1 troy ounce"`
	ProviderTimestampRaw string  `json:"providerTimestampRaw" example:"2026-02-13 16:10:00"`
	ProviderTimestampUTC string  `json:"providerTimestampUtc" example:"2026-02-13T16:10:00Z"`
	FetchedAtUTC         string  `json:"fetchedAtUtc"`
}

func newSnapshotView(s *domain.PriceSnapshot) SnapshotView {
	return SnapshotView{
		ID:                   s.ID,
		Provider:             s.Provider,
		ProviderFunction:     s.ProviderFunction,
		Symbol:               s.Symbol,
		MetalName:            s.MetalName,
		QuoteCurrency:        s.QuoteCurrency,
		Price:                s.PriceString(),
		NominalRaw:           s.NominalRaw,
		ProviderTimestampRaw: s.ProviderTimestampRaw,
		ProviderTimestampUTC: s.ProviderTimestampUTC.UTC().Format(time.RFC3339),
		FetchedAtUTC:         s.FetchedAtUTC.UTC().Format(time.RFC3339),
	}
}

func newSnapshotViews(snapshots []*domain.PriceSnapshot) []SnapshotView {
	views := make([]SnapshotView, 0, len(snapshots))
	for _, s := range snapshots {
		views = append(views, newSnapshotView(s))
	}
	return views
}

// clampLimit falls back to the default for missing, unparsable or
// non-positive values and caps the rest at maxLimit.
func clampLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// GetLatest godoc
// @Summary      Latest spot price per metal
// @Description  Returns the newest stored snapshot for every symbol, ordered by symbol
// @Tags         metals
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/metals/latest [get]
func (h *Handler) GetLatest(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest")
	defer span.End()

	snapshots, err := h.query.LatestPerSymbol(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(snapshots),
		"items": newSnapshotViews(snapshots),
	})
}

// GetHistory godoc
// @Summary      Price history for one metal
// @Description  Returns stored snapshots for a symbol, newest provider timestamp first
// @Tags         metals
// @Produce      json
// @Param        symbol  query  string  true   "Symbol, 2-10 letters or digits (e.g., XAU)"
// @Param        limit   query  int     false  "Number of rows (default 100, max 500)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/metals/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	symbol := domain.NormalizeSymbol(c.Query("symbol"))
	if !domain.ValidSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid symbol: expected 2-10 letters or digits"})
		return
	}
	limit := clampLimit(c.Query("limit"))
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit))

	snapshots, err := h.query.HistoryForSymbol(ctx, symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"count":  len(snapshots),
		"items":  newSnapshotViews(snapshots),
	})
}

// GetRecent godoc
// @Summary      Recently fetched snapshots
// @Description  Returns the most recently captured snapshots across all symbols
// @Tags         metals
// @Produce      json
// @Param        limit  query  int  false  "Number of rows (default 100, max 500)"  default(100)
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/metals/recent [get]
func (h *Handler) GetRecent(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-recent")
	defer span.End()

	snapshots, err := h.query.RecentlyFetched(ctx, clampLimit(c.Query("limit")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(snapshots),
		"items": newSnapshotViews(snapshots),
	})
}

type ingestSuccessView struct {
	Symbol   string       `json:"symbol"`
	Inserted bool         `json:"inserted"`
	Snapshot SnapshotView `json:"snapshot"`
}

type ingestResponse struct {
	RunID      string                 `json:"run_id"`
	Status     domain.BatchStatus     `json:"status"`
	StartedAt  string                 `json:"started_at"`
	FinishedAt string                 `json:"finished_at"`
	Inserted   int                    `json:"inserted"`
	Succeeded  []ingestSuccessView    `json:"succeeded"`
	Failed     []domain.SymbolFailure `json:"failed"`
}

func newIngestResponse(r *domain.BatchResult) ingestResponse {
	succeeded := make([]ingestSuccessView, 0, len(r.Succeeded))
	for _, s := range r.Succeeded {
		succeeded = append(succeeded, ingestSuccessView{
			Symbol:   s.Symbol,
			Inserted: s.Inserted,
			Snapshot: newSnapshotView(s.Snapshot),
		})
	}
	return ingestResponse{
		RunID:      r.RunID.String(),
		Status:     r.Status(),
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
		Inserted:   r.Inserted(),
		Succeeded:  succeeded,
		Failed:     r.Failed,
	}
}

// TriggerIngestion godoc
// @Summary      Run one ingestion batch
// @Description  Fetches, normalizes and stores spot prices for the given or configured symbols
// @Tags         metals
// @Produce      json
// @Param        symbols  query  string  false  "Comma-separated symbols (default from METALS_SYMBOLS)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/metals/ingest [post]
func (h *Handler) TriggerIngestion(c *gin.Context) {
	if h.runner == nil || h.providerAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion unavailable: provider API key not configured"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-ingestion")
	defer span.End()

	symbols := h.ingestSymbols
	if raw := c.Query("symbols"); raw != "" {
		symbols = domain.ParseSymbolList(raw)
	}

	result, err := h.runner.Run(ctx, symbols, h.providerAPIKey)
	switch {
	case errors.Is(err, domain.ErrNoSymbols):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAllSymbolsFailed) && result != nil:
		c.JSON(http.StatusBadGateway, newIngestResponse(result))
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, newIngestResponse(result))
	}
}
