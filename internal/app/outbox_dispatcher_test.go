package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/internal/store"
)

func TestOutboxDispatcherRedelivers(t *testing.T) {
	repo := newStubRepo()
	reassigner := &stubReassigner{}
	sideEffects := NewSideEffects(repo, reassigner, NewOutboxSideEffects(repo))

	status := domain.NewCarrierStatusRecord("12-3456789", "98-7654321", "allianz", "17439285", domain.CarrierStatusInitiated, nil)
	statusPayload, _ := json.Marshal(status)
	reassignPayload, _ := json.Marshal(domain.ReassignContractsRequest{CarrierID: "allianz", NPN: "17439285", ReceivingFEIN: "12-3456789", ReleasingFEIN: "98-7654321"})

	_ = repo.EnqueueOutbox(context.Background(), store.OutboxMessage{Kind: SideEffectStatusInitiated, Payload: statusPayload}, "timeout")
	_ = repo.EnqueueOutbox(context.Background(), store.OutboxMessage{Kind: SideEffectReassign, Payload: reassignPayload}, "timeout")
	_ = repo.EnqueueOutbox(context.Background(), store.OutboxMessage{Kind: "unknown.kind", Payload: []byte(`{}`)}, "timeout")

	delivered, err := NewOutboxDispatcher(repo, sideEffects).Flush(context.Background())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if delivered != 2 || len(repo.delivered) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected the unknown kind to be marked failed, got %d", len(repo.failed))
	}
	for _, retryAfter := range repo.failed {
		if retryAfter != 2 {
			t.Fatalf("expected first retry after 2s, got %d", retryAfter)
		}
	}

	if _, ok := repo.status("12-3456789", "allianz", "17439285", "98-7654321"); !ok {
		t.Fatal("expected the ledger row to be written on redelivery")
	}
	if len(reassigner.calls()) != 1 {
		t.Fatal("expected the reassignment to be replayed")
	}
}

type failingOutbox struct {
	*stubRepo
}

func (failingOutbox) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	return nil, errStoreDown
}

func TestOutboxDispatcherClaimFailure(t *testing.T) {
	repo := failingOutbox{newStubRepo()}
	_, err := NewOutboxDispatcher(repo, NewSideEffects(repo, nil, nil)).Flush(context.Background())
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected claim error, got %v", err)
	}
}

func TestRetryDelaySeconds(t *testing.T) {
	tests := []struct {
		attempt int
		want    int
	}{
		{0, 1},
		{1, 2},
		{3, 8},
		{8, 256},
		{9, 300},
		{40, 300},
	}
	for _, tt := range tests {
		if got := retryDelaySeconds(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected %d, got %d", tt.attempt, tt.want, got)
		}
	}
}
