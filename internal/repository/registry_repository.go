package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegistryRepository struct {
	db *gorm.DB
}

func NewRegistryRepository(db *gorm.DB) *RegistryRepository {
	return &RegistryRepository{db: db}
}

type License struct {
	ID          int64     `gorm:"primaryKey"`
	DLNumber    string    `gorm:"column:dl_number;not null;uniqueIndex"`
	Name        *string
	Validity    *string
	PhoneNumber *string   `gorm:"column:phone_number"`
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (License) TableName() string { return "licenses" }

type RegistrationCertificate struct {
	ID            int64     `gorm:"primaryKey"`
	RegnNumber    string    `gorm:"column:regn_number;not null;uniqueIndex"`
	OwnerName     *string   `gorm:"column:owner_name"`
	EngineNumber  *string   `gorm:"column:engine_number"`
	ChassisNumber *string   `gorm:"column:chassis_number"`
	CrimeInvolved *string   `gorm:"column:crime_involved"`
	Status        string    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (RegistrationCertificate) TableName() string { return "registration_certificates" }

// FindLicense returns the license stored under the normalized DL number, or
// nil when no record matches. The comparison is exact but case-insensitive;
// callers must pass an already-normalized key.
func (r *RegistryRepository) FindLicense(ctx context.Context, normalized string) (*License, error) {
	var lic License
	err := r.db.WithContext(ctx).
		Where("UPPER(dl_number) = ?", normalized).
		First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// FindRC returns the registration certificate stored under the normalized
// registration number, or nil when no record matches.
func (r *RegistryRepository) FindRC(ctx context.Context, normalized string) (*RegistrationCertificate, error) {
	var rc RegistrationCertificate
	err := r.db.WithContext(ctx).
		Where("UPPER(regn_number) = ?", normalized).
		First(&rc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// SetLicenseStatus upserts a license row keyed by the normalized DL number.
// Used by administrative blacklist operations; normalization at write time
// must match normalization at lookup time.
func (r *RegistryRepository) SetLicenseStatus(ctx context.Context, normalized, status string) error {
	now := time.Now()
	lic := License{
		DLNumber:  normalized,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dl_number"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"status": status, "updated_at": now}),
		}).
		Create(&lic).Error
}

// SetVehicleStatus upserts a registration certificate row keyed by the
// normalized registration number.
func (r *RegistryRepository) SetVehicleStatus(ctx context.Context, normalized, status string) error {
	now := time.Now()
	rc := RegistrationCertificate{
		RegnNumber: normalized,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "regn_number"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"status": status, "updated_at": now}),
		}).
		Create(&rc).Error
}
