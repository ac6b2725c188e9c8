/**
 * @description
 * The multi-carrier forwarder pushes one transfer payload to every configured
 * carrier concurrently and folds the per-carrier outcomes into a single result.
 *
 * @notes
 * - Results are aggregated in configured carrier order, never completion order.
 * - When every carrier fails, the first configured carrier's status and body
 *   become the overall response.
 */
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/ats/transfer-service/pkg/carrierclient"
	"golang.org/x/sync/errgroup"
)

const defaultCarrierConcurrency = 8

// CarrierPoster sends a body to one carrier endpoint.
type CarrierPoster interface {
	Post(ctx context.Context, carrierID, url string, body []byte) carrierclient.Result
}

// ForwardOutcome is the aggregate of a successful fan-out: at least one
// carrier accepted the payload.
type ForwardOutcome struct {
	Succeeded []string
	Warnings  map[string]string
}

// Forwarder fans a payload out to carriers.
type Forwarder struct {
	carriers    []domain.Carrier
	client      CarrierPoster
	concurrency int
}

// NewForwarder creates a forwarder over carriers in the given order.
func NewForwarder(carriers []domain.Carrier, client CarrierPoster, concurrency int) *Forwarder {
	if concurrency <= 0 {
		concurrency = defaultCarrierConcurrency
	}
	ordered := make([]domain.Carrier, len(carriers))
	copy(ordered, carriers)
	return &Forwarder{carriers: ordered, client: client, concurrency: concurrency}
}

// Carriers returns the configured carriers in order.
func (f *Forwarder) Carriers() []domain.Carrier {
	return f.carriers
}

// Forward posts payload to every carrier. It returns ErrNoCarriersConfigured
// when the list is empty and a *ForwardError when no carrier succeeded.
func (f *Forwarder) Forward(ctx context.Context, payload any) (ForwardOutcome, error) {
	if len(f.carriers) == 0 {
		return ForwardOutcome{}, ErrNoCarriersConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return ForwardOutcome{}, fmt.Errorf("failed to marshal carrier payload: %w", err)
	}

	results := make([]carrierclient.Result, len(f.carriers))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, carrier := range f.carriers {
		i, carrier := i, carrier
		g.Go(func() error {
			log.Printf("level=info component=forwarder msg=\"forwarding transfer\" carrier=%s url=%s", carrier.ID, carrier.URL)
			results[i] = f.client.Post(ctx, carrier.ID, carrier.URL, body)
			return nil
		})
	}
	_ = g.Wait()

	outcome := ForwardOutcome{Warnings: map[string]string{}}
	var firstFailure *carrierclient.Result
	for i := range results {
		result := results[i]
		if result.OK() {
			outcome.Succeeded = append(outcome.Succeeded, result.CarrierID)
			continue
		}
		log.Printf("level=warn component=forwarder msg=\"forward failed\" carrier=%s status=%d body=%q", result.CarrierID, result.StatusCode, truncateBody(result.Body))
		if firstFailure == nil {
			firstFailure = &results[i]
		}
		outcome.Warnings[result.CarrierID] = fmt.Sprintf("forward failed - %d: %s", result.StatusCode, strings.TrimSpace(string(result.Body)))
	}

	if len(outcome.Succeeded) == 0 {
		return ForwardOutcome{}, &ForwardError{
			CarrierID:  firstFailure.CarrierID,
			StatusCode: firstFailure.StatusCode,
			Body:       firstFailure.Body,
		}
	}
	if len(outcome.Warnings) == 0 {
		outcome.Warnings = nil
	}
	return outcome, nil
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
