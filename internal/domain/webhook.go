/**
 * @description
 * Models for the status push notifications delivered by the ATS hub to the
 * webhook receiver, plus the internal events this service publishes.
 */
package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// TransferStatusUpdatedEventType is the only event type the receiver accepts.
const TransferStatusUpdatedEventType = "transfer.status.updated"

var (
	ErrUnsupportedEventType = errors.New("unsupported eventType")
	ErrEventIDMismatch      = errors.New("header event id does not match payload eventId")
	ErrEventDataNotObject   = errors.New("payload data must be an object")
	ErrEventMissingTransfer = errors.New("payload data.transferId is required")
	ErrEventMissingState    = errors.New("payload data.state is required")
)

// TransferStatusEvent is the JSON body of an inbound status push.
type TransferStatusEvent struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt *string         `json:"occurredAt,omitempty"`
	Source     *string         `json:"source,omitempty"`
	RawData    json.RawMessage `json:"data"`

	Data TransferStatusEventData `json:"-"`
}

// TransferStatusEventData is the `data` object of a status push.
type TransferStatusEventData struct {
	TransferID    string   `json:"transferId"`
	PreviousState *string  `json:"previousState,omitempty"`
	State         string   `json:"state"`
	ReasonCodes   []string `json:"reasonCodes,omitempty"`
	NPN           *string  `json:"npn,omitempty"`
	StatusMessage *string  `json:"statusMessage,omitempty"`
	EffectiveDate *string  `json:"effectiveDate,omitempty"`
}

// Validate checks the event shape against the header event id and decodes the
// data object. It must be called before Data is read.
func (e *TransferStatusEvent) Validate(headerEventID string) error {
	if e.EventType != TransferStatusUpdatedEventType {
		return ErrUnsupportedEventType
	}
	if e.EventID != headerEventID {
		return ErrEventIDMismatch
	}

	raw := strings.TrimSpace(string(e.RawData))
	if !strings.HasPrefix(raw, "{") {
		return ErrEventDataNotObject
	}
	var data TransferStatusEventData
	if err := json.Unmarshal(e.RawData, &data); err != nil {
		return ErrEventDataNotObject
	}
	if data.TransferID == "" {
		return ErrEventMissingTransfer
	}
	if data.State == "" {
		return ErrEventMissingState
	}

	e.Data = data
	return nil
}

// TransferStateChangedEvent is published after a status push is applied.
type TransferStateChangedEvent struct {
	TransferID    string   `json:"transferId"`
	EventID       string   `json:"eventId"`
	PreviousState *string  `json:"previousState,omitempty"`
	State         string   `json:"state"`
	ReasonCodes   []string `json:"reasonCodes"`
	OccurredAt    *string  `json:"occurredAt,omitempty"`
}

// CarrierStatusUpdatedEvent is published after the ledger accepts a status.
type CarrierStatusUpdatedEvent struct {
	ReceivingFEIN string        `json:"receivingFein"`
	StatusKey     string        `json:"statusKey"`
	CarrierID     string        `json:"carrierId"`
	Status        CarrierStatus `json:"status"`
	NPN           string        `json:"npn"`
}
