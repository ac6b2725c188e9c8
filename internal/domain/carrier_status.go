package domain

import (
	"sort"
	"strings"
)

// CarrierStatus is the per-carrier progress of a transfer.
type CarrierStatus string

const (
	CarrierStatusPending   CarrierStatus = "PENDING"
	CarrierStatusInitiated CarrierStatus = "INITIATED"
	CarrierStatusReleased  CarrierStatus = "RELEASED"
	CarrierStatusCompleted CarrierStatus = "COMPLETED"
	CarrierStatusRejected  CarrierStatus = "REJECTED"
	CarrierStatusCanceled  CarrierStatus = "CANCELED"
)

var carrierStatuses = map[CarrierStatus]struct{}{
	CarrierStatusPending:   {},
	CarrierStatusInitiated: {},
	CarrierStatusReleased:  {},
	CarrierStatusCompleted: {},
	CarrierStatusRejected:  {},
	CarrierStatusCanceled:  {},
}

// Valid reports whether s is a known carrier status. Transition legality is not
// checked; the ledger accepts any known value.
func (s CarrierStatus) Valid() bool {
	_, ok := carrierStatuses[s]
	return ok
}

// CarrierStatusNames returns the known status names sorted alphabetically.
func CarrierStatusNames() []string {
	names := make([]string, 0, len(carrierStatuses))
	for status := range carrierStatuses {
		names = append(names, string(status))
	}
	sort.Strings(names)
	return names
}

// Requirement is an outstanding carrier requirement for a transfer leg.
type Requirement struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// StatusKey builds the ledger sort key carrierId#npn#releasingFein.
func StatusKey(carrierID, npn, releasingFein string) string {
	return strings.Join([]string{carrierID, npn, releasingFein}, "#")
}

// CarrierStatusRecord is one ledger row, partitioned by receiving FEIN.
type CarrierStatusRecord struct {
	ReceivingFEIN string        `json:"receivingFein"`
	StatusKey     string        `json:"statusKey"`
	ReleasingFEIN string        `json:"releasingFein"`
	CarrierID     string        `json:"carrierId"`
	Status        CarrierStatus `json:"status"`
	NPN           string        `json:"npn"`
	Requirements  []Requirement `json:"requirements"`
}

// NewCarrierStatusRecord fills in the derived status key.
func NewCarrierStatusRecord(receivingFein, releasingFein, carrierID, npn string, status CarrierStatus, requirements []Requirement) CarrierStatusRecord {
	return CarrierStatusRecord{
		ReceivingFEIN: receivingFein,
		StatusKey:     StatusKey(carrierID, npn, releasingFein),
		ReleasingFEIN: releasingFein,
		CarrierID:     carrierID,
		Status:        status,
		NPN:           npn,
		Requirements:  requirements,
	}
}

// StatusUpdateRequest is the ingestion payload reported by a carrier or hub.
type StatusUpdateRequest struct {
	ReceivingFEIN string        `json:"receivingFein"`
	ReleasingFEIN string        `json:"releasingFein"`
	CarrierID     string        `json:"carrierId"`
	Status        CarrierStatus `json:"status"`
	NPN           string        `json:"npn"`
	Requirements  []Requirement `json:"requirements,omitempty"`
}

// MissingFields lists empty required fields in wire order.
func (r StatusUpdateRequest) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"receivingFein", r.ReceivingFEIN},
		{"releasingFein", r.ReleasingFEIN},
		{"carrierId", r.CarrierID},
		{"status", string(r.Status)},
		{"npn", r.NPN},
	}

	var missing []string
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// Carrier is one configured downstream endpoint.
type Carrier struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url" yaml:"url"`
}
