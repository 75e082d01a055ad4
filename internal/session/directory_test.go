package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"devrim/internal/app/dto"
	domainuser "devrim/internal/domain/user"
)

func TestLabel(t *testing.T) {
	direct := directChat("c1", bob, epoch)
	assert.Equal(t, "Bob Builder", Label(direct, "alice"))
	assert.Equal(t, "Alice Liddell", Label(direct, "bob"))

	group := dto.Chat{ID: "g", ChatName: "sender club", IsGroupChat: true, Users: []dto.User{alice, bob}}
	assert.Equal(t, "sender club", Label(group, "alice"))

	orphan := dto.Chat{ID: "c2", ChatName: "sender"}
	assert.Equal(t, "Unknown user", Label(orphan, "alice"))
	assert.Equal(t, domainuser.DefaultPicture, Avatar(orphan, "alice"))
}

func TestPreview(t *testing.T) {
	c := directChat("c1", bob, epoch)
	assert.Empty(t, Preview(c))

	m := message("m1", "c1", bob, epoch)
	m.Content = "see you"
	c.LatestMessage = &m
	assert.Equal(t, "Bob: see you", Preview(c))

	m.Sender = dto.User{ID: "x", Name: "Xavier Quinn"}
	assert.Equal(t, "Xavier: see you", Preview(c))

	m.Sender = dto.User{ID: "x"}
	assert.Equal(t, "Unknown user: see you", Preview(c))
}

func TestStoreRevisionGate(t *testing.T) {
	s := NewStore(alice)
	c := directChat("c1", bob, epoch)
	c.Revision = 3
	assert.True(t, s.PutChat(c))

	older := c
	older.Revision = 2
	older.ChatName = "renamed"
	assert.False(t, s.PutChat(older))
	held, _ := s.Chat("c1")
	assert.Equal(t, "sender", held.ChatName)

	same := c
	same.UpdatedAt = epoch.Add(1)
	assert.True(t, s.PutChat(same))
}

func TestStoreTombstonesFilterServerCopies(t *testing.T) {
	s := NewStore(alice)
	m := message("m1", "c1", bob, epoch)
	s.RemoveMessage("c1", "m1")

	c := directChat("c1", bob, epoch)
	c.Pinned = []dto.Message{m}
	c.LatestMessage = &m
	s.PutChat(c)
	s.SetMessages("c1", []dto.Message{m})

	held, _ := s.Chat("c1")
	assert.Empty(t, held.Pinned)
	assert.Nil(t, held.LatestMessage)
	assert.Empty(t, s.Messages("c1"))
	assert.True(t, s.Loaded("c1"))
	assert.False(t, s.AddMessage(m))
}
