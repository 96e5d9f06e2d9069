// ABOUTME: Repository interface for the server record store.
// ABOUTME: Defines the owner-scoped contract the HTTP server and CLI depend on.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harperreed/cradle/internal/models"
)

// Repository defines the storage interface for account data.
// Every operation is scoped to a trusted owner id.
type Repository interface {
	// Snapshot
	GetSnapshot(ctx context.Context, owner int64) (*models.Snapshot, error)

	// Activity operations
	SaveActivity(ctx context.Context, owner int64, a *models.Activity) error
	GetActivity(ctx context.Context, owner int64, id string) (*models.Activity, error)
	ListActivities(ctx context.Context, owner int64, f ActivityFilter) ([]models.Activity, error)
	DeleteActivity(ctx context.Context, owner int64, id string) error

	// Custom activity operations
	SaveCustomActivity(ctx context.Context, owner int64, c *models.CustomActivity) error
	ListCustomActivities(ctx context.Context, owner int64) ([]models.CustomActivity, error)
	DeleteCustomActivity(ctx context.Context, owner int64, id string) error

	// Growth record operations
	SaveGrowthRecord(ctx context.Context, owner int64, g *models.GrowthRecord) error
	ListGrowthRecords(ctx context.Context, owner int64) ([]models.GrowthRecord, error)
	DeleteGrowthRecord(ctx context.Context, owner int64, id string) error

	// Singletons
	GetProfile(ctx context.Context, owner int64) (*models.Profile, error)
	SaveProfile(ctx context.Context, owner int64, patch json.RawMessage) (*models.Profile, error)
	GetSettings(ctx context.Context, owner int64) (*models.Settings, error)
	SaveSettings(ctx context.Context, owner int64, patch json.RawMessage) (*models.Settings, error)

	// Schedule operations
	SaveSchedule(ctx context.Context, owner int64, s *models.NotificationSchedule) error
	ListSchedules(ctx context.Context, owner int64) ([]models.NotificationSchedule, error)
	DeleteSchedule(ctx context.Context, owner int64, id string) error
	ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]models.NotificationSchedule, error)
	AdvanceSchedule(ctx context.Context, id string, prev, next, claimedAt time.Time) (bool, error)

	// Account-wide atomic units
	ExportAccount(ctx context.Context, owner int64) (*models.Document, error)
	ImportAccount(ctx context.Context, owner int64, doc *models.Document) (*ImportSummary, error)
	DeleteAccount(ctx context.Context, owner int64) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time check that DB implements Repository.
var _ Repository = (*DB)(nil)
