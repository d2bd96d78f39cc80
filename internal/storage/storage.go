// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
)

// Storage is the persistence interface of the sentinel.
type Storage interface {
	// Users
	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// Positions
	CreatePosition(ctx context.Context, position *models.Position) error
	ListActivePositions(ctx context.Context) ([]*models.Position, error)
	ListPositionsByOwnerMarket(ctx context.Context, userID uint, market string) ([]*models.Position, error)
	UpdatePositionFields(ctx context.Context, positionID uint, fields map[string]interface{}) error

	// Migrations
	RunMigrations() error
}
