package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	ServerPort  int

	// Fallback phase durations applied when a phase event carries no value.
	AutoDuration   time.Duration
	TeleopDuration time.Duration

	// How often the controller re-broadcasts a snapshot to all clients.
	BroadcastInterval time.Duration

	// Robot call-socket connect timeout.
	RobotDialTimeout time.Duration

	// Upper bound on one phase-command round trip; a robot that never
	// answers is abandoned after this long.
	RobotDispatchTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	autoMS, err := intEnv("AUTO_DURATION_MS", 30_000)
	if err != nil {
		return nil, err
	}
	teleopMS, err := intEnv("TELEOP_DURATION_MS", 180_000)
	if err != nil {
		return nil, err
	}
	broadcastMS, err := intEnv("BROADCAST_INTERVAL_MS", 1_000)
	if err != nil {
		return nil, err
	}
	dialMS, err := intEnv("ROBOT_DIAL_TIMEOUT_MS", 5_000)
	if err != nil {
		return nil, err
	}
	dispatchMS, err := intEnv("ROBOT_DISPATCH_TIMEOUT_MS", 3_000)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:          dbURL,
		ServerPort:           port,
		AutoDuration:         time.Duration(autoMS) * time.Millisecond,
		TeleopDuration:       time.Duration(teleopMS) * time.Millisecond,
		BroadcastInterval:    time.Duration(broadcastMS) * time.Millisecond,
		RobotDialTimeout:     time.Duration(dialMS) * time.Millisecond,
		RobotDispatchTimeout: time.Duration(dispatchMS) * time.Millisecond,
	}, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
