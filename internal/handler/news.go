package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetNews godoc
// @Summary      Get crypto news headlines
// @Description  Returns headlines with per-article sentiment, tagged live or fallback
// @Tags         news
// @Produce      json
// @Param        query  query  string  false  "Search query"  default(cryptocurrency)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/news [get]
func (h *Handler) GetNews(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news")
	defer span.End()

	query := c.DefaultQuery("query", "cryptocurrency")
	span.SetAttributes(attribute.String("query", query))

	res := h.news.Headlines(ctx, query)
	articles := res.Value

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + ". " + a.Description
	}
	verdicts := h.sentiment.AnalyzeMany(ctx, texts)
	for i := range articles {
		articles[i].Sentiment = &verdicts[i]
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"origin":   res.Origin,
	})
}

// GetTrends godoc
// @Summary      Get trending crypto topics
// @Tags         trends
// @Produce      json
// @Param        window_hours  query  int  false  "Lookback window in hours"  default(24)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/trends [get]
func (h *Handler) GetTrends(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trends")
	defer span.End()

	window := 24
	if v := c.Query("window_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 168 {
			window = n
		}
	}
	span.SetAttributes(attribute.Int("window_hours", window))

	res := h.trends.Trending(ctx, window)
	c.JSON(http.StatusOK, gin.H{
		"topics": res.Value,
		"origin": res.Origin,
	})
}
