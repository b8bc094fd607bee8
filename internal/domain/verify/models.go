package verify

// Status is the classification of a registry lookup for one subject.
type Status string

const (
	StatusNoData      Status = "no_data_provided"
	StatusNotFound    Status = "not_found"
	StatusValid       Status = "valid"
	StatusBlacklisted Status = "blacklisted"
)

// DriverStatus is the classification of a face-match attempt.
type DriverStatus string

const (
	DriverNoFace      DriverStatus = "no_face_detected"
	DriverClear       DriverStatus = "clear"
	DriverAlert       DriverStatus = "alert"
	DriverUnavailable DriverStatus = "service_unavailable"
)

// Alert types written to the transaction log. The exact strings are part of
// the log contract consumed by the dashboard.
const (
	AlertBlacklistedDL   = "Blacklisted DL Scanned"
	AlertBlacklistedRC   = "Blacklisted Vehicle Scanned"
	AlertSuspectDriver   = "Suspect Driver Matched"
	AlertSuspiciousUsage = "Suspicious DL Usage"
)

// Scan sources recorded on audit rows.
const (
	SourceManual = "Manual"
	SourceOCR    = "OCR"
	SourceMixed  = "Mixed"
	SourceSystem = "System"
)

// DLOutcome is the per-request result of a driving-license lookup.
type DLOutcome struct {
	Status        Status `json:"status"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	Name          string `json:"name,omitempty"`
	Validity      string `json:"validity,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
}

// RCOutcome is the per-request result of a registration-certificate lookup.
type RCOutcome struct {
	Status        Status `json:"status"`
	RegnNumber    string `json:"regn_number,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
	EngineNumber  string `json:"engine_number,omitempty"`
	ChassisNumber string `json:"chassis_number,omitempty"`
	CrimeInvolved string `json:"crime_involved,omitempty"`
}

// DriverOutcome is the per-request result of a face match.
type DriverOutcome struct {
	Status     DriverStatus `json:"status"`
	Name       string       `json:"name,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
}

// Request carries everything the orchestrator needs for one verification.
// Image fields are paths to temp files already saved by the transport layer;
// the caller owns their cleanup.
type Request struct {
	ManualDL        string
	ManualRC        string
	Location        string
	Tollgate        string
	DLImagePath     string
	RCImagePath     string
	DriverImagePath string
}

// HasInput reports whether the request carries at least one identifier or
// image to act on.
func (r Request) HasInput() bool {
	return r.ManualDL != "" || r.ManualRC != "" ||
		r.DLImagePath != "" || r.RCImagePath != "" || r.DriverImagePath != ""
}

// Result is the combined outcome returned to the caller. The three subject
// outcomes are independent; any subset may be present.
type Result struct {
	TransactionID string         `json:"transaction_id"`
	DLData        *DLOutcome     `json:"dl_data,omitempty"`
	RCData        *RCOutcome     `json:"rc_data,omitempty"`
	DriverData    *DriverOutcome `json:"driver_data,omitempty"`
	Suspicious    bool           `json:"suspicious"`
}
