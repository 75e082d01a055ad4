package support

import (
	"context"

	"devrim/internal/app/dto"
	"devrim/internal/app/uow"
	domainchat "devrim/internal/domain/chat"
	domainuser "devrim/internal/domain/user"
)

// LoadDirectory fetches every user and message referenced by chats and extra messages.
func LoadDirectory(ctx context.Context, unit uow.UnitOfWork, chats []*domainchat.Chat, extra ...*domainchat.Message) (dto.Directory, error) {
	dir := dto.Directory{
		Users:    make(map[domainuser.ID]*domainuser.User),
		Messages: make(map[domainchat.MessageID]*domainchat.Message),
	}
	userSet := make(map[domainuser.ID]struct{})
	msgSet := make(map[domainchat.MessageID]struct{})
	for _, c := range chats {
		for _, m := range c.Members {
			userSet[m] = struct{}{}
		}
		if c.Admin != "" {
			userSet[c.Admin] = struct{}{}
		}
		if c.LatestMessageID != "" {
			msgSet[c.LatestMessageID] = struct{}{}
		}
		for _, id := range c.Pinned {
			msgSet[id] = struct{}{}
		}
	}
	for _, m := range extra {
		dir.Messages[m.ID] = m
		delete(msgSet, m.ID)
	}

	if len(msgSet) > 0 {
		ids := make([]domainchat.MessageID, 0, len(msgSet))
		for id := range msgSet {
			ids = append(ids, id)
		}
		msgs, err := unit.Messages().ByIDs(ctx, ids)
		if err != nil {
			return dto.Directory{}, err
		}
		for _, m := range msgs {
			dir.Messages[m.ID] = m
		}
	}
	for _, m := range dir.Messages {
		userSet[m.SenderID] = struct{}{}
	}

	if len(userSet) > 0 {
		ids := make([]domainuser.ID, 0, len(userSet))
		for id := range userSet {
			ids = append(ids, id)
		}
		users, err := unit.Users().ByIDs(ctx, ids)
		if err != nil {
			return dto.Directory{}, err
		}
		for _, u := range users {
			dir.Users[u.ID] = u
		}
	}
	return dir, nil
}

// PopulateChat maps one chat with its references resolved.
func PopulateChat(ctx context.Context, unit uow.UnitOfWork, c *domainchat.Chat) (dto.Chat, error) {
	dir, err := LoadDirectory(ctx, unit, []*domainchat.Chat{c})
	if err != nil {
		return dto.Chat{}, err
	}
	return dir.Chat(c), nil
}

// MemberChat loads chatID and checks that member belongs to it.
func MemberChat(ctx context.Context, unit uow.UnitOfWork, chatID domainchat.ID, member domainuser.ID) (*domainchat.Chat, error) {
	c, err := unit.Chats().ByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(member) {
		return nil, domainchat.ErrNotMember
	}
	return c, nil
}
