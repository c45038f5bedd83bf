package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"komensa/internal/api"
	"komensa/internal/assistant"
	"komensa/internal/models"
	"komensa/internal/repository"
	"komensa/internal/service"
	"komensa/internal/storage"
	"komensa/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port, cfg.DB.SSLMode)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.Message{}, &models.RoomState{}, &models.ConversationSetup{}); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	repos := repository.NewRepositories(db)

	ai := assistant.NewClient(assistant.Config{
		APIKey:          cfg.OpenAI.APIKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		Model:           cfg.OpenAI.Model,
		SummaryModel:    cfg.OpenAI.SummaryModel,
		AssistantID:     cfg.OpenAI.AssistantID,
		RunPollInterval: cfg.Assistant.RunPollInterval,
		RunPollAttempts: cfg.Assistant.RunPollAttempts,
	})

	services := service.NewServices(repos, ai, cfg)

	// Seed the main room on first start.
	if err := services.Chat.EnsureRoom(); err != nil {
		log.Fatalf("Failed to seed main room: %v", err)
	}

	// Background maintenance: typing-presence pruning and the stuck-room
	// recovery sweep.
	services.Presence.Start()
	defer services.Presence.Stop()
	services.Watchdog.Start()
	defer services.Watchdog.Stop()

	r := gin.Default()
	api.SetupRoutes(r, services, db)

	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
