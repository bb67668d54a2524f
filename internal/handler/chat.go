package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
}

// PostChat godoc
// @Summary      Ask the market concierge
// @Description  Runs the message through the model ensemble with live market context
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        request  body  chatRequest  true  "Conversation id and message"
// @Success      200  {object}  domain.ChatReply
// @Failure      400  {object}  map[string]string
// @Router       /api/chat [post]
func (h *Handler) PostChat(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-chat")
	defer span.End()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}
	span.SetAttributes(attribute.String("conversation_id", req.ConversationID))

	reply, err := h.advisor.Ask(ctx, req.ConversationID, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, reply)
}

// GetChatHistory godoc
// @Summary      Get a conversation's history
// @Tags         chat
// @Produce      json
// @Param        conversation_id  path  string  true  "Conversation id"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/chat/{conversation_id}/history [get]
func (h *Handler) GetChatHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-chat-history")
	defer span.End()

	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat history persistence is disabled"})
		return
	}

	conversationID := c.Param("conversation_id")
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	turns, err := h.history.ListTurns(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"turns":           turns,
	})
}

// DeleteChatHistory godoc
// @Summary      Delete a conversation's history
// @Tags         chat
// @Produce      json
// @Param        conversation_id  path  string  true  "Conversation id"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/chat/{conversation_id}/history [delete]
func (h *Handler) DeleteChatHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-chat-history")
	defer span.End()

	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat history persistence is disabled"})
		return
	}

	conversationID := c.Param("conversation_id")
	span.SetAttributes(attribute.String("conversation_id", conversationID))

	deleted, err := h.history.DeleteConversation(ctx, conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conversationID,
		"deleted_turns":   deleted,
	})
}
