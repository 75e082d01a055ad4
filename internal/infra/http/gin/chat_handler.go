package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	chatsapp "devrim/internal/app/handlers/chats"
	"devrim/internal/app/queries"
)

// ChatHandler serves chat access, group management and pins.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type accessChatRequest struct {
	UserID string `json:"userId"`
}

func (h ChatHandler) Access(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req accessChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		badRequest(c, "userId is required")
		return
	}
	cmd := chatsapp.AccessChatCommand{
		ActorID:         p.ID,
		UserID:          strings.TrimSpace(req.UserID),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	chat, err := commands.Dispatch[chatsapp.AccessChatCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "access chat", "user_id", p.ID, "peer_id", req.UserID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	list, err := queries.Ask[chatsapp.ListChatsQuery, dto.ChatList](c.Request.Context(), h.Queries, chatsapp.ListChatsQuery{ActorID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err, "list chats", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h ChatHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	chatID := c.Param("id")
	chat, err := queries.Ask[chatsapp.GetChatQuery, dto.Chat](c.Request.Context(), h.Queries, chatsapp.GetChatQuery{ActorID: p.ID, ChatID: chatID})
	if err != nil {
		respondError(c, h.Logger, err, "get chat", "user_id", p.ID, "chat_id", chatID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type createGroupRequest struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
}

func (h ChatHandler) CreateGroup(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	cmd := chatsapp.CreateGroupCommand{
		ActorID:         p.ID,
		Name:            strings.TrimSpace(req.Name),
		UserIDs:         req.Users,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	chat, err := commands.Dispatch[chatsapp.CreateGroupCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "create group", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

type renameGroupRequest struct {
	ChatID   string `json:"chatId"`
	ChatName string `json:"chatName"`
}

func (h ChatHandler) Rename(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req renameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	cmd := chatsapp.RenameGroupCommand{ActorID: p.ID, ChatID: req.ChatID, Name: strings.TrimSpace(req.ChatName)}
	chat, err := commands.Dispatch[chatsapp.RenameGroupCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "rename group", "user_id", p.ID, "chat_id", req.ChatID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type memberRequest struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (h ChatHandler) AddMember(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	cmd := chatsapp.AddMemberCommand{ActorID: p.ID, ChatID: req.ChatID, UserID: req.UserID}
	chat, err := commands.Dispatch[chatsapp.AddMemberCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "add member", "user_id", p.ID, "chat_id", req.ChatID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) RemoveMember(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	cmd := chatsapp.RemoveMemberCommand{ActorID: p.ID, ChatID: req.ChatID, UserID: req.UserID}
	chat, err := commands.Dispatch[chatsapp.RemoveMemberCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "remove member", "user_id", p.ID, "chat_id", req.ChatID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

type pinRequest struct {
	MessageID string `json:"messageId"`
}

// Pin and Unpin answer with the updated chat; the client replaces its copy.
func (h ChatHandler) Pin(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	chatID, messageID, ok := bindPin(c)
	if !ok {
		return
	}
	cmd := chatsapp.PinMessageCommand{ActorID: p.ID, ChatID: chatID, MessageID: messageID}
	chat, err := commands.Dispatch[chatsapp.PinMessageCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "pin message", "user_id", p.ID, "chat_id", chatID, "message_id", messageID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func (h ChatHandler) Unpin(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	chatID, messageID, ok := bindPin(c)
	if !ok {
		return
	}
	cmd := chatsapp.UnpinMessageCommand{ActorID: p.ID, ChatID: chatID, MessageID: messageID}
	chat, err := commands.Dispatch[chatsapp.UnpinMessageCommand, dto.Chat](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err, "unpin message", "user_id", p.ID, "chat_id", chatID, "message_id", messageID)
		return
	}
	c.JSON(http.StatusOK, chat)
}

func bindPin(c *gin.Context) (string, string, bool) {
	chatID := strings.TrimSpace(c.Param("id"))
	var req pinRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.MessageID) == "" {
		badRequest(c, "messageId is required")
		return "", "", false
	}
	return chatID, strings.TrimSpace(req.MessageID), true
}

var _ ChatHTTP = ChatHandler{}
