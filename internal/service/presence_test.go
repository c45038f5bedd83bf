package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracksTypingUsers(t *testing.T) {
	p := NewPresenceService(NewEventHub())

	p.SetTyping("M", true)
	p.SetTyping("E", true)
	assert.Equal(t, []string{"E", "M"}, p.TypingUsers())

	p.SetTyping("E", false)
	assert.Equal(t, []string{"M"}, p.TypingUsers())
}

func TestPresencePrunesStaleEntries(t *testing.T) {
	p := NewPresenceService(NewEventHub())
	now := time.Now()
	p.now = func() time.Time { return now }

	p.SetTyping("M", true)
	assert.Equal(t, []string{"M"}, p.TypingUsers())

	// Past the staleness window the entry disappears without an
	// explicit stop update.
	now = now.Add(typingTimeout + time.Second)
	assert.Empty(t, p.TypingUsers())
}
