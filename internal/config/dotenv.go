package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/DoyleJ11/stop-backend/internal/lobby"
	"github.com/DoyleJ11/stop-backend/internal/ws"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	Port                  string
	LogLevel              string
	LogDev                bool
	DatabaseURL           string
	RoundStartDelayMs     int
	SecondsPerCategory    int
	StopGraceMs           int
	VoteSeconds           int
	EmptyRoomGraceSeconds int
	InactivitySeconds     int
	InboundRate           float64
	InboundBurst          int
}

func Default() Config {
	return Config{
		Port:                  "8080",
		LogLevel:              "info",
		RoundStartDelayMs:     3000,
		SecondsPerCategory:    15,
		StopGraceMs:           2000,
		VoteSeconds:           15,
		EmptyRoomGraceSeconds: 60,
		InactivitySeconds:     30,
		InboundRate:           20,
		InboundBurst:          40,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PORT"); raw != "" {
		cfg.Port = raw
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("LOG_DEV"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.LogDev = value
		}
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("ROUND_START_DELAY_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.RoundStartDelayMs = value
		}
	}
	if raw := os.Getenv("SECONDS_PER_CATEGORY"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.SecondsPerCategory = value
		}
	}
	if raw := os.Getenv("STOP_GRACE_MS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.StopGraceMs = value
		}
	}
	if raw := os.Getenv("VOTE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.VoteSeconds = value
		}
	}
	if raw := os.Getenv("EMPTY_ROOM_GRACE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.EmptyRoomGraceSeconds = value
		}
	}
	if raw := os.Getenv("INACTIVITY_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.InactivitySeconds = value
		}
	}
	if raw := os.Getenv("INBOUND_RATE"); raw != "" {
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			cfg.InboundRate = value
		}
	}
	if raw := os.Getenv("INBOUND_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.InboundBurst = value
		}
	}
	return cfg
}

func (c Config) Timings() lobby.Timings {
	return lobby.Timings{
		StartDelay:     time.Duration(c.RoundStartDelayMs) * time.Millisecond,
		PerCategory:    time.Duration(c.SecondsPerCategory) * time.Second,
		StopGrace:      time.Duration(c.StopGraceMs) * time.Millisecond,
		VoteDuration:   time.Duration(c.VoteSeconds) * time.Second,
		EmptyRoomGrace: time.Duration(c.EmptyRoomGraceSeconds) * time.Second,
	}
}

func (c Config) Supervisor() ws.Config {
	cfg := ws.DefaultConfig()
	cfg.Inactivity = time.Duration(c.InactivitySeconds) * time.Second
	cfg.InboundRate = c.InboundRate
	cfg.InboundBurst = c.InboundBurst
	return cfg
}
