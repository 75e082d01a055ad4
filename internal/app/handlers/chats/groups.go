package chats

import (
	"context"

	"devrim/internal/app/commands"
	"devrim/internal/app/dto"
	handlersupport "devrim/internal/app/handlers/support"
	"devrim/internal/app/middleware"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

const (
	CreateGroupKey  = "chats.group.create"
	RenameGroupKey  = "chats.group.rename"
	AddMemberKey    = "chats.group.add"
	RemoveMemberKey = "chats.group.remove"
)

type CreateGroupCommand struct {
	ActorID         string   `validate:"required"`
	Name            string   `validate:"required,max=100"`
	UserIDs         []string `validate:"min=2,dive,required"`
	IdempotencyKeyV string
}

func (c CreateGroupCommand) Key() string            { return CreateGroupKey }
func (c CreateGroupCommand) Actor() domainuser.ID   { return domainuser.ID(c.ActorID) }
func (c CreateGroupCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CreateGroupCommand) ResultPrototype() any   { return &dto.Chat{} }

type CreateGroupHandler struct {
	Deps
}

func (h *CreateGroupHandler) Handle(ctx context.Context, cmd CreateGroupCommand) (dto.Chat, error) {
	unit, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Chat{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	members := make([]domainuser.ID, 0, len(cmd.UserIDs))
	for _, id := range cmd.UserIDs {
		members = append(members, domainuser.ID(id))
	}
	found, err := unit.Users().ByIDs(ctx, members)
	if err != nil {
		return dto.Chat{}, err
	}
	known := make(map[domainuser.ID]struct{}, len(found))
	for _, u := range found {
		known[u.ID] = struct{}{}
	}
	for _, id := range members {
		if _, ok := known[id]; !ok {
			return dto.Chat{}, domainuser.ErrNotFound
		}
	}

	c, err := domainchat.NewGroupChat(domainchat.GroupParams{
		ID:      domainchat.ID(h.newID()),
		Name:    cmd.Name,
		Admin:   domainuser.ID(cmd.ActorID),
		Members: members,
		Now:     h.now(),
	})
	if err != nil {
		return dto.Chat{}, err
	}
	if err := h.save(ctx, unit, c); err != nil {
		return dto.Chat{}, err
	}
	out, err := handlersupport.PopulateChat(ctx, unit, c)
	if err != nil {
		return dto.Chat{}, err
	}
	if err := unit.CommitIfOwned(); err != nil {
		return dto.Chat{}, err
	}
	h.logger().Info("group chat created", "chat_id", c.ID, "admin", c.Admin, "members", len(c.Members))
	return out, nil
}

type RenameGroupCommand struct {
	ActorID string `validate:"required"`
	ChatID  string `validate:"required"`
	Name    string `validate:"required,max=100"`
}

func (c RenameGroupCommand) Key() string          { return RenameGroupKey }
func (c RenameGroupCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

type AddMemberCommand struct {
	ActorID string `validate:"required"`
	ChatID  string `validate:"required"`
	UserID  string `validate:"required"`
}

func (c AddMemberCommand) Key() string          { return AddMemberKey }
func (c AddMemberCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

// RemoveMemberCommand removes UserID from a group; UserID == ActorID means leaving.
type RemoveMemberCommand struct {
	ActorID string `validate:"required"`
	ChatID  string `validate:"required"`
	UserID  string `validate:"required"`
}

func (c RemoveMemberCommand) Key() string          { return RemoveMemberKey }
func (c RemoveMemberCommand) Actor() domainuser.ID { return domainuser.ID(c.ActorID) }

type RenameGroupHandler struct {
	Deps
}

func (h *RenameGroupHandler) Handle(ctx context.Context, cmd RenameGroupCommand) (dto.Chat, error) {
	return h.mutateGroup(ctx, cmd.ChatID, func(ctx context.Context, _ uow.UnitOfWork, c *domainchat.Chat) error {
		return c.Rename(cmd.Name, domainuser.ID(cmd.ActorID), h.now())
	})
}

type AddMemberHandler struct {
	Deps
}

func (h *AddMemberHandler) Handle(ctx context.Context, cmd AddMemberCommand) (dto.Chat, error) {
	return h.mutateGroup(ctx, cmd.ChatID, func(ctx context.Context, unit uow.UnitOfWork, c *domainchat.Chat) error {
		if _, err := unit.Users().ByID(ctx, domainuser.ID(cmd.UserID)); err != nil {
			return err
		}
		return c.AddMember(domainuser.ID(cmd.UserID), domainuser.ID(cmd.ActorID), h.now())
	})
}

type RemoveMemberHandler struct {
	Deps
}

func (h *RemoveMemberHandler) Handle(ctx context.Context, cmd RemoveMemberCommand) (dto.Chat, error) {
	return h.mutateGroup(ctx, cmd.ChatID, func(ctx context.Context, _ uow.UnitOfWork, c *domainchat.Chat) error {
		return c.RemoveMember(domainuser.ID(cmd.UserID), domainuser.ID(cmd.ActorID), h.now())
	})
}

func (d Deps) mutateGroup(ctx context.Context, chatID string, mutate func(context.Context, uow.UnitOfWork, *domainchat.Chat) error) (dto.Chat, error) {
	unit, err := handlersupport.BeginUnit(ctx, d.UoWFactory)
	if err != nil {
		return dto.Chat{}, err
	}
	defer unit.Close()
	ctx = unit.Ctx

	c, err := unit.Chats().ByID(ctx, domainchat.ID(chatID))
	if err != nil {
		return dto.Chat{}, err
	}
	before := c.Revision
	if err := mutate(ctx, unit, c); err != nil {
		return dto.Chat{}, err
	}
	if c.Revision != before {
		if err := d.save(ctx, unit, c); err != nil {
			return dto.Chat{}, err
		}
	}
	out, err := handlersupport.PopulateChat(ctx, unit, c)
	if err != nil {
		return dto.Chat{}, err
	}
	if err := unit.CommitIfOwned(); err != nil {
		return dto.Chat{}, err
	}
	return out, nil
}

var _ commands.Handler[CreateGroupCommand, dto.Chat] = (*CreateGroupHandler)(nil)
var _ commands.Handler[RenameGroupCommand, dto.Chat] = (*RenameGroupHandler)(nil)
var _ commands.Handler[AddMemberCommand, dto.Chat] = (*AddMemberHandler)(nil)
var _ commands.Handler[RemoveMemberCommand, dto.Chat] = (*RemoveMemberHandler)(nil)
var _ middleware.IdempotentCommand = CreateGroupCommand{}
