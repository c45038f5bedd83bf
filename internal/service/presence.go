package service

import (
	"sort"
	"sync"
	"time"
)

// typingTimeout is the staleness window after which a typing entry is
// dropped even without an explicit "stopped typing" update.
const typingTimeout = 3 * time.Second

type typingStatus struct {
	isTyping bool
	at       time.Time
}

// PresenceService tracks best-effort typing presence in memory. It is
// deliberately not persisted: losing it on restart is acceptable.
type PresenceService struct {
	mu       sync.Mutex
	statuses map[string]typingStatus
	timeout  time.Duration
	hub      *EventHub

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

func NewPresenceService(hub *EventHub) *PresenceService {
	return &PresenceService{
		statuses: make(map[string]typingStatus),
		timeout:  typingTimeout,
		hub:      hub,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic sweep that prunes stale entries.
func (p *PresenceService) Start() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.mu.Lock()
				p.pruneLocked()
				p.mu.Unlock()
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *PresenceService) Stop() {
	p.once.Do(func() { close(p.stop) })
}

// SetTyping records that a user started or stopped typing.
func (p *PresenceService) SetTyping(user string, isTyping bool) {
	p.mu.Lock()
	p.statuses[user] = typingStatus{isTyping: isTyping, at: p.now()}
	users := p.typingUsersLocked()
	p.mu.Unlock()

	p.hub.Broadcast(Event{Type: EventTyping, TypingUsers: users})
}

// TypingUsers returns users currently typing, pruning stale entries.
func (p *PresenceService) TypingUsers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typingUsersLocked()
}

func (p *PresenceService) typingUsersLocked() []string {
	p.pruneLocked()
	users := make([]string, 0, len(p.statuses))
	for user, status := range p.statuses {
		if status.isTyping {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users
}

func (p *PresenceService) pruneLocked() {
	cutoff := p.now().Add(-p.timeout)
	for user, status := range p.statuses {
		if !status.isTyping || status.at.Before(cutoff) {
			delete(p.statuses, user)
		}
	}
}
