package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// TransactionLog is one append-only row in the transaction log. Ordinary
// audit rows have a nil AlertType; alert rows carry one of the alert-type
// strings. Rows are never updated or deleted by this service.
type TransactionLog struct {
	ID            int64             `gorm:"primaryKey"`
	TransactionID string            `gorm:"column:transaction_id;not null"`
	Timestamp     time.Time         `gorm:"not null"`
	ScannedBy     string            `gorm:"column:scanned_by;not null"`
	Location      string
	Tollgate      string
	DLNumber      *string           `gorm:"column:dl_number"`
	DLName        *string           `gorm:"column:dl_name"`
	PhoneNumber   *string           `gorm:"column:phone_number"`
	DLStatus      *string           `gorm:"column:dl_status"`
	VehicleNumber *string           `gorm:"column:vehicle_number"`
	OwnerName     *string           `gorm:"column:owner_name"`
	EngineNumber  *string           `gorm:"column:engine_number"`
	ChassisNumber *string           `gorm:"column:chassis_number"`
	RCStatus      *string           `gorm:"column:rc_status"`
	CrimeInvolved *string           `gorm:"column:crime_involved"`
	DriverStatus  *string           `gorm:"column:driver_status"`
	DriverName    *string           `gorm:"column:driver_name"`
	AlertType     *string           `gorm:"column:alert_type"`
	Description   *string
	Suspicious    bool
	RawPayload    datatypes.JSONMap `gorm:"column:raw_payload;type:jsonb"`
	CreatedAt     time.Time
}

func (TransactionLog) TableName() string { return "transaction_logs" }

// AppendAudit inserts one audit row. Unconditional append, no dedup.
func (r *LogRepository) AppendAudit(ctx context.Context, entry *TransactionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// AppendAlert inserts one alert row. Repeated identical alerts across
// repeated qualifying scans are allowed; each scan is a distinct event.
func (r *LogRepository) AppendAlert(ctx context.Context, entry *TransactionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// DistinctVehicleNumbers returns the distinct vehicle numbers seen with the
// given DL number since the window start (inclusive). Alert rows are
// excluded so an alert never counts as ordinary usage and re-triggers
// itself. Matching is case-insensitive like registry lookups, so rows
// written before an identifier was normalized still count.
func (r *LogRepository) DistinctVehicleNumbers(ctx context.Context, dlNumber string, since time.Time) ([]string, error) {
	var vehicles []string
	err := r.db.WithContext(ctx).
		Model(&TransactionLog{}).
		Distinct("vehicle_number").
		Where("UPPER(dl_number) = ?", dlNumber).
		Where("timestamp >= ?", since).
		Where("vehicle_number IS NOT NULL").
		Where("alert_type IS NULL").
		Pluck("vehicle_number", &vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindLogs lists transaction-log rows newest first.
func (r *LogRepository) FindLogs(ctx context.Context, limit, offset int) ([]TransactionLog, error) {
	query := r.db.WithContext(ctx).
		Model(&TransactionLog{}).
		Order("timestamp DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []TransactionLog
	err := query.Find(&logs).Error
	return logs, err
}

// FindDLUsage lists the recent ordinary-usage rows for one DL number,
// newest first, excluding alert rows.
func (r *LogRepository) FindDLUsage(ctx context.Context, dlNumber string, since time.Time) ([]TransactionLog, error) {
	var logs []TransactionLog
	err := r.db.WithContext(ctx).
		Where("UPPER(dl_number) = ?", dlNumber).
		Where("timestamp >= ?", since).
		Where("vehicle_number IS NOT NULL").
		Where("alert_type IS NULL").
		Order("timestamp DESC").
		Find(&logs).Error
	return logs, err
}
