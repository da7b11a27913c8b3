// Package nats publishes run-completed events so external dashboards
// and alerting can follow answer quality without polling the run
// store.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cyberrag/advisory-search/internal/core/domain"
)

type Publisher struct {
	conn    *nats.Conn
	subject string
}

func New(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("advisory-search"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// runCompletedEvent is the wire shape on the runs subject. The answer
// text itself stays out of the event; consumers that need it read the
// run store.
type runCompletedEvent struct {
	RunID             string           `json:"run_id"`
	Status            domain.RunStatus `json:"status"`
	Uncited           bool             `json:"uncited,omitempty"`
	CitedSources      int              `json:"cited_sources"`
	UnresolvedMarkers int              `json:"unresolved_markers"`
	FailedStage       string           `json:"failed_stage,omitempty"`
	EmittedAt         time.Time        `json:"emitted_at"`
}

func (p *Publisher) PublishRunCompleted(_ context.Context, result domain.Result) error {
	event := runCompletedEvent{
		RunID:     result.RunID,
		Status:    result.Status,
		Uncited:   result.Uncited,
		EmittedAt: time.Now().UTC(),
	}
	if result.Answer != nil {
		event.CitedSources = len(result.Answer.CitedSources)
		event.UnresolvedMarkers = len(result.Answer.UnresolvedMarkers)
	}
	if result.Failure != nil {
		event.FailedStage = string(result.Failure.Stage)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
