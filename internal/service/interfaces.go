package service

import (
	"context"
	"time"

	"toll-verify-service/internal/domain/verify"
	"toll-verify-service/internal/repository"
)

// RegistryStore is the read side of the license/vehicle registry consumed by
// verification. Mutation belongs to administrative operations.
type RegistryStore interface {
	FindLicense(ctx context.Context, normalized string) (*repository.License, error)
	FindRC(ctx context.Context, normalized string) (*repository.RegistrationCertificate, error)
}

// LogStore is the append-only transaction log.
type LogStore interface {
	AppendAudit(ctx context.Context, entry *repository.TransactionLog) error
	AppendAlert(ctx context.Context, entry *repository.TransactionLog) error
	DistinctVehicleNumbers(ctx context.Context, dlNumber string, since time.Time) ([]string, error)
	FindLogs(ctx context.Context, limit, offset int) ([]repository.TransactionLog, error)
	FindDLUsage(ctx context.Context, dlNumber string, since time.Time) ([]repository.TransactionLog, error)
}

// Recognizer abstracts the OCR/ANPR/face collaborators. Implementations must
// degrade gracefully: an error from the extract methods means the service was
// unreachable, an empty result means it answered with nothing recognized.
// ExtractPlateNumber also returns the collaborator's raw OCR text so the
// audit trail can keep what was actually read off the image.
type Recognizer interface {
	ExtractDLNumber(ctx context.Context, imagePath string) (string, error)
	ExtractPlateNumber(ctx context.Context, imagePath string) (plate string, rawText string, err error)
	MatchFace(ctx context.Context, imagePath string) verify.DriverOutcome
	EnrollSuspect(ctx context.Context, imagePath, name string) error
}
