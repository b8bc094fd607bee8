package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"toll-verify-service/internal/domain/verify"
	"toll-verify-service/internal/repository"
)

var errStoreDown = errors.New("store down")

type fakeRegistry struct {
	licenses map[string]*repository.License
	rcs      map[string]*repository.RegistrationCertificate
	fail     bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		licenses: make(map[string]*repository.License),
		rcs:      make(map[string]*repository.RegistrationCertificate),
	}
}

func (f *fakeRegistry) addLicense(number, status, name string) {
	f.licenses[number] = &repository.License{
		DLNumber: number,
		Status:   status,
		Name:     &name,
	}
}

func (f *fakeRegistry) addRC(number, status, owner string) {
	f.rcs[number] = &repository.RegistrationCertificate{
		RegnNumber: number,
		Status:     status,
		OwnerName:  &owner,
	}
}

func (f *fakeRegistry) FindLicense(_ context.Context, normalized string) (*repository.License, error) {
	if f.fail {
		return nil, errStoreDown
	}
	return f.licenses[normalized], nil
}

func (f *fakeRegistry) FindRC(_ context.Context, normalized string) (*repository.RegistrationCertificate, error) {
	if f.fail {
		return nil, errStoreDown
	}
	return f.rcs[normalized], nil
}

// fakeLogStore keeps rows in memory and mirrors the window-query semantics of
// the postgres repository: inclusive window start, non-null vehicle number,
// alert rows excluded, case-insensitive DL match.
type fakeLogStore struct {
	rows       []repository.TransactionLog
	failAppend bool
}

func (f *fakeLogStore) AppendAudit(_ context.Context, entry *repository.TransactionLog) error {
	if f.failAppend {
		return errStoreDown
	}
	f.rows = append(f.rows, *entry)
	return nil
}

func (f *fakeLogStore) AppendAlert(_ context.Context, entry *repository.TransactionLog) error {
	if f.failAppend {
		return errStoreDown
	}
	f.rows = append(f.rows, *entry)
	return nil
}

func (f *fakeLogStore) DistinctVehicleNumbers(_ context.Context, dlNumber string, since time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	for _, row := range f.rows {
		if row.DLNumber == nil || !strings.EqualFold(*row.DLNumber, dlNumber) {
			continue
		}
		if row.Timestamp.Before(since) {
			continue
		}
		if row.VehicleNumber == nil {
			continue
		}
		if row.AlertType != nil {
			continue
		}
		seen[*row.VehicleNumber] = struct{}{}
	}
	vehicles := make([]string, 0, len(seen))
	for v := range seen {
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

func (f *fakeLogStore) FindLogs(_ context.Context, limit, offset int) ([]repository.TransactionLog, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[offset:end], nil
}

func (f *fakeLogStore) FindDLUsage(_ context.Context, dlNumber string, since time.Time) ([]repository.TransactionLog, error) {
	var out []repository.TransactionLog
	for _, row := range f.rows {
		if row.DLNumber == nil || !strings.EqualFold(*row.DLNumber, dlNumber) {
			continue
		}
		if row.Timestamp.Before(since) || row.VehicleNumber == nil || row.AlertType != nil {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeLogStore) audits() []repository.TransactionLog {
	var out []repository.TransactionLog
	for _, row := range f.rows {
		if row.AlertType == nil {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeLogStore) alerts() []repository.TransactionLog {
	var out []repository.TransactionLog
	for _, row := range f.rows {
		if row.AlertType != nil {
			out = append(out, row)
		}
	}
	return out
}

type fakeRecognizer struct {
	dlNumber    string
	dlErr       error
	plateNumber string
	plateRaw    string
	plateErr    error
	face        verify.DriverOutcome
	enrollErr   error

	dlCalls     int
	plateCalls  int
	faceCalls   int
	enrollCalls int
}

func (f *fakeRecognizer) ExtractDLNumber(_ context.Context, _ string) (string, error) {
	f.dlCalls++
	return f.dlNumber, f.dlErr
}

func (f *fakeRecognizer) ExtractPlateNumber(_ context.Context, _ string) (string, string, error) {
	f.plateCalls++
	return f.plateNumber, f.plateRaw, f.plateErr
}

func (f *fakeRecognizer) MatchFace(_ context.Context, _ string) verify.DriverOutcome {
	f.faceCalls++
	return f.face
}

func (f *fakeRecognizer) EnrollSuspect(_ context.Context, _, _ string) error {
	f.enrollCalls++
	return f.enrollErr
}
