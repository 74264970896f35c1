// Package nodepool selects a healthy ledger node from a configured list.
package nodepool

import (
	"context"
	"net/http"
	"time"

	"github.com/mosaicswap/escrow-engine/pkg/circuitbreaker"
	"github.com/mosaicswap/escrow-engine/pkg/config"
	"github.com/mosaicswap/escrow-engine/pkg/logger"
	"github.com/mosaicswap/escrow-engine/pkg/models"
)

// healthPath is the node endpoint probed to decide reachability.
const healthPath = "/node/health"

// Pool probes configured nodes in preference order and hands out the first
// healthy endpoint. Nodes that keep failing are skipped for a reset window
// by a per-node circuit breaker.
type Pool struct {
	nodes      []string
	breakers   map[string]*circuitbreaker.CircuitBreaker
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a pool over the configured node URLs.
func New(cfg *config.Config, log logger.Logger) *Pool {
	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(cfg.NodeURLs))
	for _, node := range cfg.NodeURLs {
		breakers[node] = circuitbreaker.NewCircuitBreaker(
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
		)
	}

	return &Pool{
		nodes:    cfg.NodeURLs,
		breakers: breakers,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Endpoint returns the base URL of the first healthy node, or
// models.ErrNodeUnreachable when every node is down or skipped.
func (p *Pool) Endpoint(ctx context.Context) (string, error) {
	for _, node := range p.nodes {
		if p.breakers[node].IsOpen() {
			p.logger.DebugWithStage(logger.Node, "skipping %s: circuit open", node)
			continue
		}

		if p.probe(ctx, node) {
			p.breakers[node].RecordSuccess()
			return node, nil
		}

		p.breakers[node].RecordFailure()
		p.logger.NoticeWithStage(logger.Node, "node %s failed health check (%d recent failures)",
			node, p.breakers[node].FailureCount())
	}

	return "", models.ErrNodeUnreachable
}

// ReportFailure records a request failure against a node so the breaker can
// trip between health probes.
func (p *Pool) ReportFailure(node string) {
	if cb, ok := p.breakers[node]; ok {
		cb.RecordFailure()
	}
}

// Statuses reports per-node circuit state for the health endpoint.
func (p *Pool) Statuses() map[string]bool {
	statuses := make(map[string]bool, len(p.nodes))
	for _, node := range p.nodes {
		statuses[node] = !p.breakers[node].IsOpen()
	}
	return statuses
}

func (p *Pool) probe(ctx context.Context, node string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node+healthPath, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
