package repository

import (
	"context"
	"errors"
	"time"

	"personalfinancedss/internal/module/predictor/domain"
	"personalfinancedss/internal/shared"

	"gorm.io/gorm"
)

type gormStateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a GORM-backed StateRepository.
func NewStateRepository(db *gorm.DB) StateRepository {
	return &gormStateRepository{db: db}
}

func (r *gormStateRepository) Get(ctx context.Context, householdID, productID string) (*domain.PredictorState, error) {
	var state domain.PredictorState
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return &state, nil
}

func (r *gormStateRepository) Upsert(ctx context.Context, state *domain.PredictorState) error {
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", state.HouseholdID, state.ProductID).
		Save(state).Error
	if err != nil {
		return shared.ErrStorageFailed.WithError(err)
	}
	return nil
}

func (r *gormStateRepository) ListAll(ctx context.Context) ([]domain.PredictorState, error) {
	var states []domain.PredictorState
	if err := r.db.WithContext(ctx).Find(&states).Error; err != nil {
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return states, nil
}

func (r *gormStateRepository) Delete(ctx context.Context, householdID, productID string) error {
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		Delete(&domain.PredictorState{}).Error
	if err != nil {
		return shared.ErrStorageFailed.WithError(err)
	}
	return nil
}

type gormEventLogRepository struct {
	db *gorm.DB
}

// NewEventLogRepository creates a GORM-backed EventLogRepository.
func NewEventLogRepository(db *gorm.DB) EventLogRepository {
	return &gormEventLogRepository{db: db}
}

func (r *gormEventLogRepository) Append(ctx context.Context, entry *domain.EventLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return shared.ErrStorageFailed.WithError(err)
	}
	return nil
}

func (r *gormEventLogRepository) ListByPair(ctx context.Context, householdID, productID string) ([]domain.EventLogEntry, error) {
	var entries []domain.EventLogEntry
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		Order("timestamp ASC, created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return entries, nil
}

func (r *gormEventLogRepository) First(ctx context.Context, householdID, productID string) (*domain.EventLogEntry, error) {
	var entry domain.EventLogEntry
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		Order("timestamp ASC, created_at ASC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return &entry, nil
}

func (r *gormEventLogRepository) LastTimestamp(ctx context.Context, householdID, productID string) (time.Time, bool, error) {
	var entry domain.EventLogEntry
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		Order("timestamp DESC, created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, shared.ErrStorageFailed.WithError(err)
	}
	return entry.Timestamp, true, nil
}

func (r *gormEventLogRepository) FindByIdempotencyKey(ctx context.Context, householdID, productID, key string) (*domain.EventLogEntry, error) {
	var entry domain.EventLogEntry
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ? AND idempotency_key = ?", householdID, productID, key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return &entry, nil
}

type gormForecastRepository struct {
	db *gorm.DB
}

// NewForecastRepository creates a GORM-backed ForecastRepository.
func NewForecastRepository(db *gorm.DB) ForecastRepository {
	return &gormForecastRepository{db: db}
}

func (r *gormForecastRepository) Append(ctx context.Context, snapshot *domain.ForecastSnapshot) error {
	if err := r.db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return shared.ErrStorageFailed.WithError(err)
	}
	return nil
}

func (r *gormForecastRepository) Latest(ctx context.Context, householdID, productID string) (*domain.ForecastSnapshot, error) {
	var snap domain.ForecastSnapshot
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND product_id = ?", householdID, productID).
		Order("generated_at DESC").
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, shared.ErrStorageFailed.WithError(err)
	}
	return &snap, nil
}
