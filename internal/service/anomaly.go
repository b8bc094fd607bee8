package service

import (
	"context"
	"fmt"
	"time"

	"toll-verify-service/internal/domain/verify"
)

// CheckSuspiciousUsage evaluates the multi-vehicle rule for one DL number:
// the distinct vehicle numbers logged with it inside the trailing window,
// counted from ordinary audit rows only. The window start is inclusive.
// Recomputed from the log on every call, never cached.
func (s *VerifyService) CheckSuspiciousUsage(ctx context.Context, dlNumber string, now time.Time) (bool, int, error) {
	since := now.Add(-s.anomaly.Window)
	vehicles, err := s.logs.DistinctVehicleNumbers(ctx, dlNumber, since)
	if err != nil {
		return false, 0, fmt.Errorf("query dl usage window: %w", err)
	}
	count := len(vehicles)
	return count >= s.anomaly.DistinctVehicles, count, nil
}

// checkSuspiciousUsage runs the rule inside a verify request and, on
// trigger, writes exactly one alert row for this scan. Only called for DLs
// that resolved to a valid record; a blacklisted DL already raised its own
// alert and re-flagging it here would be redundant.
func (s *VerifyService) checkSuspiciousUsage(ctx context.Context, txnID string, now time.Time, req verify.Request, dlNumber string) (bool, error) {
	flagged, count, err := s.CheckSuspiciousUsage(ctx, dlNumber, now)
	if err != nil {
		s.log.Error().Err(err).Str("txn_id", txnID).Str("dl_number", dlNumber).Msg("suspicious-usage check failed")
		return false, err
	}
	if !flagged {
		return false, nil
	}

	desc := fmt.Sprintf("DL %s used with %d vehicles in last %d hours", dlNumber, count, int(s.anomaly.Window.Hours()))
	alert := s.newAlertEntry(txnID, now, req, verify.AlertSuspiciousUsage, desc)
	alert.DLNumber = &dlNumber
	if err := s.logs.AppendAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("append alert record: %w", err)
	}

	s.log.Info().
		Str("txn_id", txnID).
		Str("dl_number", dlNumber).
		Int("distinct_vehicles", count).
		Msg("suspicious DL usage detected")
	return true, nil
}
