package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/stop-backend/internal/lobby"
)

// RoundRecord is one finished round. Scores and categories are stored as
// jsonb; nothing queries into them.
type RoundRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RoomID     string         `gorm:"size:16;index;not null"`
	Letter     string         `gorm:"size:8;not null"`
	Categories datatypes.JSON `gorm:"type:jsonb;not null"`
	Scores     datatypes.JSON `gorm:"type:jsonb;not null"`
	FinishedAt time.Time      `gorm:"index;not null"`
	CreatedAt  time.Time      `gorm:"not null"`
}

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the archive table.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("database url is not set")
	}
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := conn.AutoMigrate(&RoundRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: conn}, nil
}

func (s *Store) RecordRound(ctx context.Context, summary lobby.RoundSummary) error {
	rec, err := NewRoundRecord(summary)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func NewRoundRecord(summary lobby.RoundSummary) (RoundRecord, error) {
	categories, err := json.Marshal(summary.Categories)
	if err != nil {
		return RoundRecord{}, fmt.Errorf("encode categories: %w", err)
	}
	scores := summary.Scores
	if scores == nil {
		scores = map[string]int{}
	}
	scoreData, err := json.Marshal(scores)
	if err != nil {
		return RoundRecord{}, fmt.Errorf("encode scores: %w", err)
	}
	return RoundRecord{
		ID:         uuid.New(),
		RoomID:     summary.RoomID,
		Letter:     summary.Letter,
		Categories: datatypes.JSON(categories),
		Scores:     datatypes.JSON(scoreData),
		FinishedAt: summary.FinishedAt,
	}, nil
}

var _ lobby.Recorder = (*Store)(nil)
