package repository

import (
	"time"

	"komensa/internal/models"
	"komensa/internal/storage"
)

type RoomStateRepository interface {
	Find(roomID string) (*models.RoomState, error)
	Create(state *models.RoomState) error
	Save(state *models.RoomState) error
	SetAssistantActive(roomID string, active bool) error
	SetThreadID(roomID, threadID string) error
	DeleteByRoomID(roomID string) error
	// ReleaseStuck clears the busy flag on rooms that have been
	// assistant-active since before the cutoff. Returns the number of
	// rooms released.
	ReleaseStuck(cutoff time.Time) (int64, error)
}

type roomStateRepository struct {
	db *storage.PostgresDB
}

func NewRoomStateRepository(db *storage.PostgresDB) RoomStateRepository {
	return &roomStateRepository{db: db}
}

func (r *roomStateRepository) Find(roomID string) (*models.RoomState, error) {
	var state models.RoomState
	err := r.db.Where("room_id = ?", roomID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *roomStateRepository) Create(state *models.RoomState) error {
	return r.db.Create(state).Error
}

func (r *roomStateRepository) Save(state *models.RoomState) error {
	return r.db.Save(state).Error
}

func (r *roomStateRepository) SetAssistantActive(roomID string, active bool) error {
	return r.db.Model(&models.RoomState{}).
		Where("room_id = ?", roomID).
		Update("assistant_active", active).Error
}

func (r *roomStateRepository) SetThreadID(roomID, threadID string) error {
	return r.db.Model(&models.RoomState{}).
		Where("room_id = ?", roomID).
		Update("thread_id", threadID).Error
}

func (r *roomStateRepository) DeleteByRoomID(roomID string) error {
	return r.db.Where("room_id = ?", roomID).Delete(&models.RoomState{}).Error
}

func (r *roomStateRepository) ReleaseStuck(cutoff time.Time) (int64, error) {
	result := r.db.Model(&models.RoomState{}).
		Where("assistant_active = ? AND updated_at < ?", true, cutoff).
		Update("assistant_active", false)
	return result.RowsAffected, result.Error
}
