package mappings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// Connect opens and validates a Postgres-backed gorm pool for the mapping
// store.
func Connect(ctx context.Context, dsn string, maxConns int, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect mapping store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(max(maxConns/2, 1))
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping mapping store: %w", err)
	}
	if logger != nil {
		logger.Info("Mapping store connected", zap.Int("max_conns", maxConns))
	}
	return db, nil
}

// Repository reads table mappings through gorm.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository creates a Repository.
func NewRepository(db *gorm.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger.Named("mappings")}
}

// ListActive returns the active mappings of active clients.
func (r *Repository) ListActive(ctx context.Context) ([]TableDescriptor, error) {
	var rows []descriptorRow
	mappings := tableMappingModel{}.TableName()
	clients := clientModel{}.TableName()

	err := r.db.WithContext(ctx).
		Model(&tableMappingModel{}).
		Select(mappings+".table_name, "+mappings+".custom_table_name").
		Joins("JOIN "+clients+" ON "+clients+".id = "+mappings+".client_id").
		Where(mappings+".is_active = ? AND "+clients+".is_active = ?", true, true).
		Order(mappings + ".table_name").
		Scan(&rows).Error
	if err != nil {
		r.logger.Error("Failed to list table mappings", zap.Error(err))
		return nil, apperrors.Unavailable(apperrors.CodeMappingsFailed, "failed to list table mappings").
			WithOperation("ListActive").
			WithResource(mappings).
			WithCause(err).
			Build()
	}

	out := make([]TableDescriptor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.descriptor())
	}
	return Normalize(out), nil
}

// Close releases the underlying pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
