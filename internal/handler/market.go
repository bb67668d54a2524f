package handler

import (
	"net/http"
	"strings"

	"crypto-concierge/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSnapshot godoc
// @Summary      Get the current market snapshot
// @Description  Returns per-coin stats, indicator estimates and aggregate market figures
// @Tags         market
// @Produce      json
// @Success      200  {object}  domain.MarketSnapshot
// @Failure      503  {object}  map[string]string
// @Router       /api/market/snapshot [get]
func (h *Handler) GetSnapshot(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-snapshot")
	defer span.End()

	snap := h.market.Snapshot(ctx)
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market snapshot not ready"})
		return
	}
	span.SetAttributes(attribute.String("snapshot.origin", string(snap.Origin)))

	c.JSON(http.StatusOK, snap)
}

// GetCoin godoc
// @Summary      Get snapshot details for one coin
// @Description  Returns the snapshot row for a tracked symbol, including indicator estimates
// @Tags         market
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  domain.CoinStat
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/market/coins/{symbol} [get]
func (h *Handler) GetCoin(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-coin")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	if _, ok := domain.BinancePair[symbol]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.SupportedSymbols,
		})
		return
	}

	coin, err := h.market.CoinDetail(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, coin)
}
