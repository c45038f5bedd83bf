package repository

import "komensa/internal/storage"

type Repositories struct {
	Message   MessageRepository
	RoomState RoomStateRepository
	Setup     SetupRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		Message:   NewMessageRepository(db),
		RoomState: NewRoomStateRepository(db),
		Setup:     NewSetupRepository(db),
	}
}
