package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	DB        DBConfig
	OpenAI    OpenAIConfig
	Assistant AssistantConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string
}

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SummaryModel string
	// AssistantID enables the persistent-thread invocation path.
	// When empty, only the flat chat-completion path is used.
	AssistantID string
}

type AssistantConfig struct {
	// ReplyDelay paces the typing indicator before each invocation.
	ReplyDelay time.Duration
	// RunPollInterval and RunPollAttempts bound the thread-run polling loop.
	RunPollInterval time.Duration
	RunPollAttempts int
	// StuckTimeout is how long a room may stay assistant-busy before the
	// watchdog clears the flag.
	StuckTimeout time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")
	viper.AddConfigPath(".")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.user", "postgres")
	viper.SetDefault("db.name", "komensa")
	viper.SetDefault("db.port", 5432)
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("openai.model", "gpt-4-turbo")
	viper.SetDefault("openai.summarymodel", "gpt-4.1-mini")
	viper.SetDefault("assistant.replydelay", 1500*time.Millisecond)
	viper.SetDefault("assistant.runpollinterval", time.Second)
	viper.SetDefault("assistant.runpollattempts", 30)
	viper.SetDefault("assistant.stucktimeout", 2*time.Minute)

	// Deployment environments configure through variables rather than a
	// config file, so bind the names the platform already sets.
	viper.AutomaticEnv()
	_ = viper.BindEnv("openai.apikey", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.baseurl", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.assistantid", "OPENAI_ASSISTANT_ID")
	_ = viper.BindEnv("db.host", "DB_HOST")
	_ = viper.BindEnv("db.user", "DB_USER")
	_ = viper.BindEnv("db.password", "DB_PASSWORD")
	_ = viper.BindEnv("db.name", "DB_NAME")
	_ = viper.BindEnv("db.port", "DB_PORT")
	_ = viper.BindEnv("db.sslmode", "DB_SSLMODE")
	_ = viper.BindEnv("server.address", "SERVER_ADDRESS")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
