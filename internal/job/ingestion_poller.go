package job

import (
	"context"
	"log"
	"time"

	"gold-rush/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const defaultPollInterval = time.Hour

type BatchRunner interface {
	Run(ctx context.Context, symbols []string, apiKey string) (*domain.BatchResult, error)
}

// IngestionPoller runs the configured symbol batch on start and then on
// every tick. Batches never overlap: the next tick waits for the current
// run to return.
type IngestionPoller struct {
	tracer       trace.Tracer
	runner       BatchRunner
	symbols      []string
	apiKey       string
	pollInterval time.Duration
}

func NewIngestionPoller(tracer trace.Tracer, runner BatchRunner, symbols []string, apiKey string, pollIntervalSecs int) *IngestionPoller {
	interval := time.Duration(pollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &IngestionPoller{
		tracer:       tracer,
		runner:       runner,
		symbols:      append([]string(nil), symbols...),
		apiKey:       apiKey,
		pollInterval: interval,
	}
}

// Start blocks until ctx is cancelled.
func (p *IngestionPoller) Start(ctx context.Context) {
	if p.runner == nil || p.apiKey == "" {
		log.Println("Ingestion poller disabled: no runner or API key")
		<-ctx.Done()
		return
	}

	log.Printf("Ingestion poller starting (symbols=%v, interval=%s)", p.symbols, p.pollInterval)
	p.pollLoop(ctx)
	log.Println("Ingestion poller stopped")
}

func (p *IngestionPoller) pollLoop(ctx context.Context) {
	p.runOnce(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *IngestionPoller) runOnce(ctx context.Context) {
	ctx, span := p.tracer.Start(ctx, "ingestion-poller.run-once")
	defer span.End()

	result, err := p.runner.Run(ctx, p.symbols, p.apiKey)
	if err != nil {
		log.Printf("poller ingestion error: %v", err)
		return
	}
	if result.Status() == domain.BatchPartial {
		log.Printf("poller ingestion run %s partial: %d of %d symbols failed",
			result.RunID, len(result.Failed), len(result.Failed)+len(result.Succeeded))
	}
}
