package repository

import (
	"komensa/internal/models"
	"komensa/internal/storage"
)

type MessageRepository interface {
	Create(message *models.Message) error
	FindByRoomID(roomID string) ([]models.Message, error)
	DistinctSenders(roomID string) ([]string, error)
	DeleteByRoomID(roomID string) error
}

type messageRepository struct {
	db *storage.PostgresDB
}

func NewMessageRepository(db *storage.PostgresDB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *messageRepository) FindByRoomID(roomID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("room_id = ?", roomID).Order("created_at asc, id asc").Find(&messages).Error
	return messages, err
}

// DistinctSenders lists the participants that have posted at least one
// message, excluding the assistant.
func (r *messageRepository) DistinctSenders(roomID string) ([]string, error) {
	var senders []string
	err := r.db.Model(&models.Message{}).
		Where("room_id = ? AND sender <> ?", roomID, models.SenderAssistant).
		Distinct("sender").
		Order("sender").
		Pluck("sender", &senders).Error
	return senders, err
}

func (r *messageRepository) DeleteByRoomID(roomID string) error {
	return r.db.Where("room_id = ?", roomID).Delete(&models.Message{}).Error
}
