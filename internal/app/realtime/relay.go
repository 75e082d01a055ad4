package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/outbox"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// Relay turns chat domain events into envelopes for connected members.
type Relay struct {
	UoWFactory uow.UoWFactory
	Pusher     Pusher
	Inbox      Inbox
	Logger     *slog.Logger
}

var ErrRelayNotConfigured = errors.New("realtime: relay missing dependencies")

// HandleCloudEvent decodes one broker payload and pushes the matching envelope.
func (r *Relay) HandleCloudEvent(ctx context.Context, payload []byte) error {
	if r.UoWFactory == nil || r.Pusher == nil {
		return ErrRelayNotConfigured
	}
	evt, err := outbox.DecodeCloudEvent(payload)
	if err != nil {
		return err
	}
	if r.Inbox != nil {
		seen, err := r.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("realtime: inbox: %w", err)
		}
		if seen {
			r.logger().Debug("duplicate event skipped", "event_id", evt.ID, "type", evt.Type)
			return nil
		}
	}

	switch evt.Name() {
	case domainchat.EventMessagePosted:
		var data domainchat.MessagePosted
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return errors.Join(outbox.ErrMalformedEnvelope, err)
		}
		return r.messagePosted(ctx, data)
	case domainchat.EventMessageDeleted:
		var data domainchat.MessageDeleted
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return errors.Join(outbox.ErrMalformedEnvelope, err)
		}
		env, err := NewEnvelope(TypeMessageDeleted, data.ChatID, data.Revision, MessageDeletedData{ChatID: data.ChatID, MessageID: data.MessageID})
		if err != nil {
			return err
		}
		r.push(data.Members, env)
		return nil
	case domainchat.EventChatUpdated:
		var data domainchat.ChatUpdated
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return errors.Join(outbox.ErrMalformedEnvelope, err)
		}
		return r.chatUpdated(ctx, data)
	default:
		r.logger().Debug("event ignored", "type", evt.Type)
		return nil
	}
}

func (r *Relay) messagePosted(ctx context.Context, data domainchat.MessagePosted) error {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	sender := dto.User{ID: data.SenderID, Name: "Unknown user", Picture: domainuser.DefaultPicture}
	if u, err := unit.Users().ByID(execCtx, domainuser.ID(data.SenderID)); err == nil {
		sender = dto.MapUser(u)
	} else if !errors.Is(err, domainuser.ErrNotFound) {
		return err
	}
	msg := dto.Message{
		ID:        data.MessageID,
		Sender:    sender,
		Content:   data.Content,
		Chat:      data.ChatID,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.CreatedAt,
	}
	env, err := NewEnvelope(TypeMessage, data.ChatID, data.Revision, msg)
	if err != nil {
		return err
	}
	r.push(data.Members, env)
	return nil
}

func (r *Relay) chatUpdated(ctx context.Context, data domainchat.ChatUpdated) error {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	c, err := unit.Chats().ByID(execCtx, domainchat.ID(data.ChatID))
	if errors.Is(err, domainchat.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	populated, err := handlersupport.PopulateChat(execCtx, unit, c)
	if err != nil {
		return err
	}
	env, err := NewEnvelope(TypeChatUpdated, data.ChatID, populated.Revision, populated)
	if err != nil {
		return err
	}
	r.push(data.Members, env)
	return nil
}

// RelayTyping forwards a typing indicator from a member to the other members.
func (r *Relay) RelayTyping(ctx context.Context, from domainuser.ID, chatID string, start bool) error {
	if r.UoWFactory == nil || r.Pusher == nil {
		return ErrRelayNotConfigured
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	c, err := handlersupport.MemberChat(execCtx, unit, domainchat.ID(chatID), from)
	if err != nil {
		return err
	}
	kind := TypeStopTyping
	if start {
		kind = TypeTyping
	}
	env, err := NewEnvelope(kind, chatID, 0, TypingData{UserID: string(from)})
	if err != nil {
		return err
	}
	others := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		if m != from {
			others = append(others, string(m))
		}
	}
	r.Pusher.Push(others, env)
	return nil
}

func (r *Relay) push(members []string, env Envelope) {
	delivered := r.Pusher.Push(members, env)
	r.logger().Debug("envelope pushed", "type", env.Type, "chat_id", env.ChatID, "revision", env.Revision, "connections", delivered)
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
