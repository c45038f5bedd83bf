package service

import (
	"komensa/internal/repository"
	"komensa/pkg/config"
)

type Services struct {
	Chat     *ChatService
	Setup    *SetupService
	Presence *PresenceService
	Hub      *EventHub
	Watchdog *Watchdog
}

func NewServices(repos *repository.Repositories, ai AssistantClient, cfg *config.Config) *Services {
	hub := NewEventHub()

	return &Services{
		Chat:     NewChatService(repos, ai, hub, cfg.Assistant.ReplyDelay),
		Setup:    NewSetupService(repos.Setup, ai),
		Presence: NewPresenceService(hub),
		Hub:      hub,
		Watchdog: NewWatchdog(repos.RoomState, cfg.Assistant.StuckTimeout),
	}
}
