/**
 * @description
 * This file defines the domain models for a book-of-business transfer request.
 * A transfer moves an agent (identified by NPN) from a releasing IMO to a
 * receiving IMO, and is fanned out to every configured carrier.
 *
 * @notes
 * - The transfer identity is derived, never chosen by the client. Two submissions
 *   with the same (receivingFein, releasingFein, npn) land on the same record.
 */
package domain

import (
	"strings"
	"time"
)

// TransferState is the lifecycle state of a transfer record.
type TransferState string

const (
	TransferStateSubmitted  TransferState = "SUBMITTED"
	TransferStateValidation TransferState = "VALIDATION"
	TransferStateProcessing TransferState = "PROCESSING"
	TransferStateCompleted  TransferState = "COMPLETED"
	TransferStateRejected   TransferState = "REJECTED"
	TransferStateWithdrawn  TransferState = "WITHDRAWN"
)

// TransferStates lists the declared transfer states in lifecycle order.
var TransferStates = []TransferState{
	TransferStateSubmitted,
	TransferStateValidation,
	TransferStateProcessing,
	TransferStateCompleted,
	TransferStateRejected,
	TransferStateWithdrawn,
}

// IsTerminal reports whether no further transition is expected from s.
func (s TransferState) IsTerminal() bool {
	switch s {
	case TransferStateCompleted, TransferStateRejected, TransferStateWithdrawn:
		return true
	}
	return false
}

// Valid reports whether s is one of the declared transfer states.
func (s TransferState) Valid() bool {
	for _, known := range TransferStates {
		if s == known {
			return true
		}
	}
	return false
}

// MaxNotesLength caps the free-text notes forwarded to carriers.
const MaxNotesLength = 2000

// EffectiveDateLayout is the wire format of a transfer effective date.
const EffectiveDateLayout = "2006-01-02"

// Agent identifies the producer being transferred.
type Agent struct {
	NPN       string `json:"npn"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Imo is an organization on either side of a transfer.
type Imo struct {
	FEIN string `json:"fein"`
	Name string `json:"name"`
}

// Consent captures the agent's authorization for the transfer.
type Consent struct {
	AgentAttestation bool   `json:"agentAttestation"`
	ESignatureRef    string `json:"eSignatureRef,omitempty"`
}

// TransferRequest is the payload accepted from clients and forwarded verbatim
// to every carrier endpoint.
type TransferRequest struct {
	Agent         Agent   `json:"agent"`
	ReleasingImo  Imo     `json:"releasingImo"`
	ReceivingImo  Imo     `json:"receivingImo"`
	EffectiveDate string  `json:"effectiveDate"`
	Consent       Consent `json:"consent"`
	Notes         string  `json:"notes,omitempty"`
}

// TransferID derives the record identity for a transfer.
func TransferID(receivingFein, releasingFein, agentNpn string) string {
	return strings.Join([]string{receivingFein, releasingFein, agentNpn}, "|")
}

// ID returns the derived identity of the request.
func (r TransferRequest) ID() string {
	return TransferID(r.ReceivingImo.FEIN, r.ReleasingImo.FEIN, r.Agent.NPN)
}

// MissingFields returns the names of required fields that are empty, in a stable order.
func (r TransferRequest) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"agent.npn", r.Agent.NPN},
		{"releasingImo.fein", r.ReleasingImo.FEIN},
		{"releasingImo.name", r.ReleasingImo.Name},
		{"receivingImo.fein", r.ReceivingImo.FEIN},
		{"receivingImo.name", r.ReceivingImo.Name},
		{"effectiveDate", r.EffectiveDate},
	}

	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// TransferRecord is the stored row for one transfer request.
type TransferRecord struct {
	ID             string        `json:"id"`
	State          TransferState `json:"state"`
	Agent          Agent         `json:"agent"`
	ReleasingImo   Imo           `json:"releasingImo"`
	ReceivingImo   Imo           `json:"receivingImo"`
	EffectiveDate  string        `json:"effectiveDate"`
	Consent        Consent       `json:"consent"`
	Notes          string        `json:"notes,omitempty"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`

	// Projection of the most recent status event applied by the webhook receiver.
	LastEventID         *string    `json:"eventId,omitempty"`
	LastEventType       *string    `json:"eventType,omitempty"`
	OccurredAt          *string    `json:"occurredAt,omitempty"`
	Source              *string    `json:"source,omitempty"`
	PreviousState       *string    `json:"previousState,omitempty"`
	ReasonCodes         []string   `json:"reasonCodes,omitempty"`
	StatusNPN           *string    `json:"statusNpn,omitempty"`
	StatusMessage       *string    `json:"statusMessage,omitempty"`
	StatusEffectiveDate *string    `json:"statusEffectiveDate,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
}

// NewTransferRecord builds a SUBMITTED record from a client request.
func NewTransferRecord(req TransferRequest, idempotencyKey string) TransferRecord {
	return TransferRecord{
		ID:             req.ID(),
		State:          TransferStateSubmitted,
		Agent:          req.Agent,
		ReleasingImo:   req.ReleasingImo,
		ReceivingImo:   req.ReceivingImo,
		EffectiveDate:  req.EffectiveDate,
		Consent:        req.Consent,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}
}

// CarrierPayload rebuilds the body sent to carriers from a stored record.
func (t TransferRecord) CarrierPayload() TransferRequest {
	return TransferRequest{
		Agent:         t.Agent,
		ReleasingImo:  t.ReleasingImo,
		ReceivingImo:  t.ReceivingImo,
		EffectiveDate: t.EffectiveDate,
		Consent:       t.Consent,
		Notes:         t.Notes,
	}
}

// TransferStatusUpdate is the set of fields the webhook receiver writes onto a
// transfer record when it applies a status event.
type TransferStatusUpdate struct {
	TransferID    string
	EventID       string
	EventType     string
	OccurredAt    *string
	Source        *string
	PreviousState *string
	State         TransferState
	ReasonCodes   []string
	NPN           *string
	StatusMessage *string
	EffectiveDate *string
	UpdatedAt     time.Time
}
