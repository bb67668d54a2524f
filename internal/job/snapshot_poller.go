package job

import (
	"context"
	"log"
	"time"

	"crypto-concierge/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// SnapshotRefresher rebuilds the market snapshot.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) *domain.MarketSnapshot
	RestoreCached(ctx context.Context)
}

// SnapshotPoller keeps the market snapshot warm so chat and market requests
// never pay for a rebuild on the hot path.
type SnapshotPoller struct {
	tracer       trace.Tracer
	market       SnapshotRefresher
	pollInterval time.Duration
}

func NewSnapshotPoller(tracer trace.Tracer, market SnapshotRefresher, pollIntervalSecs int) *SnapshotPoller {
	if pollIntervalSecs <= 0 {
		pollIntervalSecs = 5
	}
	return &SnapshotPoller{
		tracer:       tracer,
		market:       market,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
	}
}

// Start seeds from the cache, then rebuilds on the poll interval. Blocks
// until ctx is cancelled.
func (p *SnapshotPoller) Start(ctx context.Context) {
	log.Println("Snapshot poller starting...")

	p.market.RestoreCached(ctx)

	// Run immediately on start
	p.refresh(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Snapshot poller stopped")
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *SnapshotPoller) refresh(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "snapshot-poller.refresh")
	defer span.End()

	if snap := p.market.Refresh(ctx); snap == nil {
		log.Println("snapshot refresh produced no snapshot")
	}
}
