package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"toll-verify-service/internal/config"
	"toll-verify-service/internal/domain/verify"
	"toll-verify-service/internal/repository"
	"toll-verify-service/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// VerifyService orchestrates one verification: identifier resolution,
// registry lookups, face matching, audit logging, blacklist alerts and the
// suspicious-usage check.
type VerifyService struct {
	registry   RegistryStore
	logs       LogStore
	recognizer Recognizer
	anomaly    config.AnomalyConfig
	log        zerolog.Logger

	// now is swapped in tests to pin the anomaly window.
	now func() time.Time
}

func NewVerifyService(registry RegistryStore, logs LogStore, recognizer Recognizer, anomaly config.AnomalyConfig, log zerolog.Logger) *VerifyService {
	return &VerifyService{
		registry:   registry,
		logs:       logs,
		recognizer: recognizer,
		anomaly:    anomaly,
		log:        log,
		now:        time.Now,
	}
}

// Verify runs the full pipeline for one request. Registry and log-store
// faults are fatal for the request; recognition faults degrade only the
// modality they belong to.
func (s *VerifyService) Verify(ctx context.Context, req verify.Request) (*verify.Result, error) {
	if !req.HasInput() {
		return nil, fmt.Errorf("%w: at least one identifier or image is required", ErrInvalidInput)
	}

	txnID := uuid.NewString()
	now := s.now()

	// rawPayload collects what the recognition collaborators actually
	// answered for this scan; it rides along on the audit row.
	rawPayload := datatypes.JSONMap{}

	// Manual (human-corrected) input always overrides recognition output;
	// recognition is only consulted for modalities with no manual value.
	finalDL := req.ManualDL
	if finalDL == "" && req.DLImagePath != "" {
		number, err := s.recognizer.ExtractDLNumber(ctx, req.DLImagePath)
		if err != nil {
			s.log.Warn().Err(err).Str("txn_id", txnID).Msg("DL OCR unavailable, continuing without it")
			rawPayload["dl_ocr"] = map[string]interface{}{"error": "service_unavailable"}
		} else {
			finalDL = number
			rawPayload["dl_ocr"] = map[string]interface{}{"dl_number": number}
		}
	}

	finalRC := req.ManualRC
	if finalRC == "" && req.RCImagePath != "" {
		number, rawText, err := s.recognizer.ExtractPlateNumber(ctx, req.RCImagePath)
		if err != nil {
			s.log.Warn().Err(err).Str("txn_id", txnID).Msg("ANPR unavailable, continuing without it")
			rawPayload["anpr"] = map[string]interface{}{"error": "service_unavailable"}
		} else {
			finalRC = number
			rawPayload["anpr"] = map[string]interface{}{"plate_number": number, "raw_text": rawText}
		}
	}

	var dlOutcome *verify.DLOutcome
	if finalDL != "" {
		outcome, err := s.LookupDL(ctx, finalDL)
		if err != nil {
			s.log.Error().Err(err).Str("txn_id", txnID).Msg("DL registry lookup failed")
			return nil, err
		}
		dlOutcome = outcome
	}

	var rcOutcome *verify.RCOutcome
	if finalRC != "" {
		outcome, err := s.LookupRC(ctx, finalRC)
		if err != nil {
			s.log.Error().Err(err).Str("txn_id", txnID).Msg("RC registry lookup failed")
			return nil, err
		}
		rcOutcome = outcome
	}

	var driverOutcome *verify.DriverOutcome
	if req.DriverImagePath != "" {
		outcome := s.recognizer.MatchFace(ctx, req.DriverImagePath)
		driverOutcome = &outcome
		rawPayload["face"] = map[string]interface{}{
			"status":     string(outcome.Status),
			"name":       outcome.Name,
			"confidence": outcome.Confidence,
		}
	}

	entry := s.buildAuditEntry(txnID, now, req, dlOutcome, rcOutcome, driverOutcome, rawPayload)
	if entry != nil {
		if err := s.logs.AppendAudit(ctx, entry); err != nil {
			s.log.Error().Err(err).Str("txn_id", txnID).Msg("failed to append audit record")
			return nil, fmt.Errorf("append audit record: %w", err)
		}
	} else {
		s.log.Warn().Str("txn_id", txnID).Msg("no subject data resolved, skipping audit record")
	}

	suspicious := false

	if dlOutcome != nil && dlOutcome.Status == verify.StatusBlacklisted {
		suspicious = true
		desc := fmt.Sprintf("Blacklisted DL %s scanned", dlOutcome.LicenseNumber)
		alert := s.newAlertEntry(txnID, now, req, verify.AlertBlacklistedDL, desc)
		alert.DLNumber = &dlOutcome.LicenseNumber
		if err := s.logs.AppendAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("append alert record: %w", err)
		}
		s.log.Info().Str("txn_id", txnID).Str("dl_number", dlOutcome.LicenseNumber).Msg("blacklisted DL scanned")
	}

	if rcOutcome != nil && rcOutcome.Status == verify.StatusBlacklisted {
		suspicious = true
		desc := fmt.Sprintf("Blacklisted vehicle %s scanned", rcOutcome.RegnNumber)
		alert := s.newAlertEntry(txnID, now, req, verify.AlertBlacklistedRC, desc)
		alert.VehicleNumber = &rcOutcome.RegnNumber
		if err := s.logs.AppendAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("append alert record: %w", err)
		}
		s.log.Info().Str("txn_id", txnID).Str("vehicle_number", rcOutcome.RegnNumber).Msg("blacklisted vehicle scanned")
	}

	if driverOutcome != nil && driverOutcome.Status == verify.DriverAlert {
		suspicious = true
		desc := fmt.Sprintf("Suspect %s matched with confidence %.2f", driverOutcome.Name, driverOutcome.Confidence)
		alert := s.newAlertEntry(txnID, now, req, verify.AlertSuspectDriver, desc)
		alert.DriverName = &driverOutcome.Name
		if err := s.logs.AppendAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("append alert record: %w", err)
		}
		s.log.Info().Str("txn_id", txnID).Str("driver_name", driverOutcome.Name).Msg("suspect driver matched")
	}

	// The audit record for this scan is already written, so this request's
	// own vehicle counts toward its own window.
	if dlOutcome != nil && dlOutcome.Status == verify.StatusValid {
		flagged, err := s.checkSuspiciousUsage(ctx, txnID, now, req, dlOutcome.LicenseNumber)
		if err != nil {
			return nil, err
		}
		suspicious = suspicious || flagged
	}

	return &verify.Result{
		TransactionID: txnID,
		DLData:        dlOutcome,
		RCData:        rcOutcome,
		DriverData:    driverOutcome,
		Suspicious:    suspicious,
	}, nil
}

// LookupDL resolves a raw DL identifier against the registry.
func (s *VerifyService) LookupDL(ctx context.Context, raw string) (*verify.DLOutcome, error) {
	normalized := utils.NormalizeID(raw)
	if normalized == "" {
		return &verify.DLOutcome{Status: verify.StatusNoData}, nil
	}

	lic, err := s.registry.FindLicense(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find license: %w", err)
	}
	if lic == nil {
		return &verify.DLOutcome{Status: verify.StatusNotFound, LicenseNumber: normalized}, nil
	}

	return &verify.DLOutcome{
		Status:        verify.Status(lic.Status),
		LicenseNumber: lic.DLNumber,
		Name:          deref(lic.Name),
		Validity:      deref(lic.Validity),
		PhoneNumber:   deref(lic.PhoneNumber),
	}, nil
}

// LookupRC resolves a raw registration number against the registry.
func (s *VerifyService) LookupRC(ctx context.Context, raw string) (*verify.RCOutcome, error) {
	normalized := utils.NormalizeID(raw)
	if normalized == "" {
		return &verify.RCOutcome{Status: verify.StatusNoData}, nil
	}

	rc, err := s.registry.FindRC(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find registration certificate: %w", err)
	}
	if rc == nil {
		return &verify.RCOutcome{Status: verify.StatusNotFound, RegnNumber: normalized}, nil
	}

	return &verify.RCOutcome{
		Status:        verify.Status(rc.Status),
		RegnNumber:    rc.RegnNumber,
		OwnerName:     deref(rc.OwnerName),
		EngineNumber:  deref(rc.EngineNumber),
		ChassisNumber: deref(rc.ChassisNumber),
		CrimeInvolved: deref(rc.CrimeInvolved),
	}, nil
}

// buildAuditEntry assembles the audit row for this scan, or returns nil when
// no subject data was resolved; an entry with only the context fields is
// noise and is never written. A no_data_provided outcome carries no subject
// either, so it never qualifies a row on its own.
func (s *VerifyService) buildAuditEntry(txnID string, now time.Time, req verify.Request, dl *verify.DLOutcome, rc *verify.RCOutcome, driver *verify.DriverOutcome, rawPayload datatypes.JSONMap) *repository.TransactionLog {
	entry := &repository.TransactionLog{
		TransactionID: txnID,
		Timestamp:     now,
		ScannedBy:     scanSource(req),
		Location:      orUnknown(req.Location),
		Tollgate:      orUnknown(req.Tollgate),
	}

	hasSubject := false

	if dl != nil && dl.Status != verify.StatusNoData {
		hasSubject = true
		entry.DLNumber = strPtr(dl.LicenseNumber)
		entry.DLStatus = strPtr(string(dl.Status))
		entry.DLName = strPtr(dl.Name)
		entry.PhoneNumber = strPtr(dl.PhoneNumber)
	}

	if rc != nil && rc.Status != verify.StatusNoData {
		hasSubject = true
		entry.VehicleNumber = strPtr(rc.RegnNumber)
		entry.RCStatus = strPtr(string(rc.Status))
		entry.OwnerName = strPtr(rc.OwnerName)
		entry.EngineNumber = strPtr(rc.EngineNumber)
		entry.ChassisNumber = strPtr(rc.ChassisNumber)
		entry.CrimeInvolved = strPtr(rc.CrimeInvolved)
	}

	if driver != nil && driver.Status != verify.DriverUnavailable {
		hasSubject = true
		entry.DriverStatus = strPtr(string(driver.Status))
		entry.DriverName = strPtr(driver.Name)
	}

	if !hasSubject {
		return nil
	}
	if len(rawPayload) > 0 {
		entry.RawPayload = rawPayload
	}
	return entry
}

func (s *VerifyService) newAlertEntry(txnID string, now time.Time, req verify.Request, alertType, description string) *repository.TransactionLog {
	return &repository.TransactionLog{
		TransactionID: txnID,
		Timestamp:     now,
		ScannedBy:     verify.SourceSystem,
		Location:      orUnknown(req.Location),
		Tollgate:      orUnknown(req.Tollgate),
		AlertType:     &alertType,
		Description:   &description,
		Suspicious:    true,
	}
}

// EnrollSuspect forwards a suspect photo to the face collaborator. The
// embedding-model rebuild happens on the collaborator's side; acceptance here
// only means the submission was received.
func (s *VerifyService) EnrollSuspect(ctx context.Context, imagePath, name string) error {
	if name == "" {
		return fmt.Errorf("%w: suspect name is required", ErrInvalidInput)
	}
	if err := s.recognizer.EnrollSuspect(ctx, imagePath, name); err != nil {
		s.log.Warn().Err(err).Str("name", name).Msg("suspect enrollment failed")
		return err
	}
	s.log.Info().Str("name", name).Msg("suspect enrollment submitted")
	return nil
}

// ListLogs returns transaction-log rows newest first.
func (s *VerifyService) ListLogs(ctx context.Context, limit, offset int) ([]repository.TransactionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.logs.FindLogs(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("find logs: %w", err)
	}
	return logs, nil
}

// DLUsage returns the window of ordinary-usage rows for one DL number.
func (s *VerifyService) DLUsage(ctx context.Context, rawDL string) ([]repository.TransactionLog, error) {
	normalized := utils.NormalizeID(rawDL)
	if normalized == "" {
		return nil, fmt.Errorf("%w: dl number is required", ErrInvalidInput)
	}

	since := s.now().Add(-s.anomaly.Window)
	logs, err := s.logs.FindDLUsage(ctx, normalized, since)
	if err != nil {
		return nil, fmt.Errorf("find dl usage: %w", err)
	}
	return logs, nil
}

func scanSource(req verify.Request) string {
	hasImage := req.DLImagePath != "" || req.RCImagePath != "" || req.DriverImagePath != ""
	hasManual := req.ManualDL != "" || req.ManualRC != ""
	switch {
	case hasImage && hasManual:
		return verify.SourceMixed
	case hasImage:
		return verify.SourceOCR
	default:
		return verify.SourceManual
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// strPtr returns a pointer to s, or nil for the empty string so that absent
// fields stay NULL in the log row.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
