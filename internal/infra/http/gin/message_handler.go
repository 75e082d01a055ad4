package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	messagesapp "devrim/internal/app/handlers/messages"
	"devrim/internal/app/queries"
)

type MessageHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

func (h MessageHandler) Send(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	cmd := messagesapp.SendMessageCommand{
		ActorID:         p.ID,
		ChatID:          strings.TrimSpace(req.ChatID),
		Content:         req.Content,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	msg, err := commands.Dispatch[messagesapp.SendMessageCommand, dto.Message](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "send message", "user_id", p.ID, "chat_id", req.ChatID)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List pages backwards: ?before= takes the previous response's next_cursor.
func (h MessageHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	chatID := c.Param("id")
	q := messagesapp.ListMessagesQuery{ActorID: p.ID, ChatID: chatID}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "before must be an RFC 3339 timestamp")
			return
		}
		q.Before = before
	}
	list, err := queries.Ask[messagesapp.ListMessagesQuery, dto.MessageList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "list messages", "user_id", p.ID, "chat_id", chatID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h MessageHandler) Delete(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	messageID := c.Param("id")
	cmd := messagesapp.DeleteMessageCommand{ActorID: p.ID, MessageID: messageID}
	if _, err := commands.Dispatch[messagesapp.DeleteMessageCommand, messagesapp.DeletedMessage](c.Request.Context(), h.Commands, cmd); err != nil {
		respondError(c, h.Logger, err, "delete message", "user_id", p.ID, "message_id", messageID)
		return
	}
	c.Status(http.StatusNoContent)
}

var _ MessageHTTP = MessageHandler{}
