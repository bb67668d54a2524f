package handler

import (
	"net/http"

	"crypto-concierge/internal/sentiment"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type sentimentRequest struct {
	Text string `json:"text" binding:"required"`
}

type sentimentBatchRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

const maxBatchTexts = 50

// PostSentiment godoc
// @Summary      Classify the sentiment of one text
// @Description  Uses a remote financial sentiment model, degrading to a keyword heuristic
// @Tags         sentiment
// @Accept       json
// @Produce      json
// @Param        request  body  sentimentRequest  true  "Text to classify"
// @Success      200  {object}  domain.SentimentVerdict
// @Failure      400  {object}  map[string]string
// @Router       /api/sentiment [post]
func (h *Handler) PostSentiment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-sentiment")
	defer span.End()

	var req sentimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.sentiment.Analyze(ctx, req.Text))
}

// PostSentimentBatch godoc
// @Summary      Classify a batch of texts and report the aggregate mood
// @Tags         sentiment
// @Accept       json
// @Produce      json
// @Param        request  body  sentimentBatchRequest  true  "Texts to classify"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/sentiment/batch [post]
func (h *Handler) PostSentimentBatch(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-sentiment-batch")
	defer span.End()

	var req sentimentBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Texts) == 0 || len(req.Texts) > maxBatchTexts {
		c.JSON(http.StatusBadRequest, gin.H{"error": "texts must contain between 1 and 50 items"})
		return
	}
	span.SetAttributes(attribute.Int("batch_size", len(req.Texts)))

	verdicts := h.sentiment.AnalyzeMany(ctx, req.Texts)
	c.JSON(http.StatusOK, gin.H{
		"verdicts": verdicts,
		"summary":  sentiment.Aggregate(verdicts),
	})
}
