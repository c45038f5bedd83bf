package repository

import (
	"komensa/internal/models"
	"komensa/internal/storage"
)

type SetupRepository interface {
	FindByRoomID(roomID string) (*models.ConversationSetup, error)
	Create(setup *models.ConversationSetup) error
	Save(setup *models.ConversationSetup) error
	DeleteByRoomID(roomID string) error
}

type setupRepository struct {
	db *storage.PostgresDB
}

func NewSetupRepository(db *storage.PostgresDB) SetupRepository {
	return &setupRepository{db: db}
}

func (r *setupRepository) FindByRoomID(roomID string) (*models.ConversationSetup, error) {
	var setup models.ConversationSetup
	err := r.db.Where("room_id = ?", roomID).Order("created_at desc").First(&setup).Error
	if err != nil {
		return nil, err
	}
	return &setup, nil
}

func (r *setupRepository) Create(setup *models.ConversationSetup) error {
	return r.db.Create(setup).Error
}

func (r *setupRepository) Save(setup *models.ConversationSetup) error {
	return r.db.Save(setup).Error
}

func (r *setupRepository) DeleteByRoomID(roomID string) error {
	return r.db.Where("room_id = ?", roomID).Delete(&models.ConversationSetup{}).Error
}
