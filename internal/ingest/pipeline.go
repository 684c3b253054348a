package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mescon/Melodarr/internal/clock"
	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/eventbus"
	"github.com/mescon/Melodarr/internal/logger"
)

// LibraryMaintainer runs post-scan housekeeping over the index, such as
// rebuilding artist aggregates.
type LibraryMaintainer interface {
	SyncArtistCounts() error
}

// PipelineOptions bundles the pipeline's collaborators and tuning knobs.
// Maintainer and Enricher may be nil to disable those side effects.
type PipelineOptions struct {
	Coordinator    *Coordinator
	Walker         *Walker
	Source         ConfigSource
	Clock          clock.Clock
	Publisher      eventbus.Publisher
	Maintainer     LibraryMaintainer
	Enricher       ArtistEnrichmentClient
	DebounceWindow time.Duration
	EnrichBatch    int
}

// Pipeline is the ingestion façade: it owns the watcher and the debounce
// scheduler, runs scans through the coordinator, and on any scan that
// changed the index triggers maintenance plus a cancellable background
// enrichment pass.
type Pipeline struct {
	coordinator *Coordinator
	watcher     *ChangeWatcher
	debouncer   *DebounceScheduler
	source      ConfigSource
	publisher   eventbus.Publisher
	maintainer  LibraryMaintainer
	enricher    ArtistEnrichmentClient
	enrichBatch int

	mu           sync.Mutex
	enrichCancel context.CancelFunc
	wg           sync.WaitGroup
}

// NewPipeline wires the façade together.
func NewPipeline(opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		coordinator: opts.Coordinator,
		source:      opts.Source,
		publisher:   opts.Publisher,
		maintainer:  opts.Maintainer,
		enricher:    opts.Enricher,
		enrichBatch: opts.EnrichBatch,
	}
	p.debouncer = NewDebounceScheduler(opts.Clock, opts.DebounceWindow, p.onDebounceFire)
	p.watcher = NewChangeWatcher(opts.Walker, opts.Publisher, p.debouncer.OnActivity)
	return p
}

// StartWatching establishes filesystem watches over the configured roots.
func (p *Pipeline) StartWatching() error {
	roots, err := p.source.Roots()
	if err != nil {
		return err
	}
	blacklist, err := p.source.Blacklist()
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		logger.Infof("Pipeline: no roots configured, watcher not started")
		return nil
	}
	return p.watcher.Start(roots, blacklist)
}

// StopWatching tears down the watches and cancels any pending debounce.
func (p *Pipeline) StopWatching() {
	p.watcher.Stop()
	p.debouncer.Stop()
}

// Watching reports whether the filesystem watcher is active.
func (p *Pipeline) Watching() bool {
	return p.watcher.Running()
}

// Scanning reports whether a scan is currently running.
func (p *Pipeline) Scanning() bool {
	return p.coordinator.Scanning()
}

// LastScanAt returns when the last scan finished, zero if none has.
func (p *Pipeline) LastScanAt() time.Time {
	return p.coordinator.LastCompletedAt()
}

// ScanNow runs a scan over all configured roots.
func (p *Pipeline) ScanNow(ctx context.Context, trigger string) (*ScanResult, error) {
	roots, err := p.source.Roots()
	if err != nil {
		return nil, err
	}
	return p.scan(ctx, trigger, roots)
}

// ScanOneRoot runs a scan limited to a single root. Removal detection is
// likewise limited to paths under that root.
func (p *Pipeline) ScanOneRoot(ctx context.Context, trigger, root string) (*ScanResult, error) {
	return p.scan(ctx, trigger, []string{root})
}

func (p *Pipeline) scan(ctx context.Context, trigger string, roots []string) (*ScanResult, error) {
	blacklist, err := p.source.Blacklist()
	if err != nil {
		return nil, err
	}

	result, err := p.coordinator.TriggerScan(ctx, trigger, roots, blacklist)
	if err != nil {
		return nil, err
	}

	p.afterScan(result)
	return result, nil
}

// onDebounceFire is invoked by the scheduler after a quiet window. Rejected
// triggers re-arm the debouncer so the pending changes are retried once the
// active scan or the minimum interval clears.
func (p *Pipeline) onDebounceFire(roots []string) {
	_, err := p.scan(context.Background(), "watcher", roots)
	if err != nil {
		if errors.Is(err, ErrScanActive) || errors.Is(err, ErrScanTooSoon) {
			logger.Debugf("Pipeline: watcher rescan deferred: %v", err)
			for _, root := range roots {
				p.debouncer.OnActivity(root)
			}
			return
		}
		logger.Errorf("Pipeline: watcher-triggered scan failed: %v", err)
	}
}

// afterScan triggers library maintenance and a background enrichment pass
// when the scan changed the index. Enrichment failures never surface as
// scan failures.
func (p *Pipeline) afterScan(result *ScanResult) {
	if !result.Delta() {
		return
	}

	if p.maintainer != nil {
		if err := p.maintainer.SyncArtistCounts(); err != nil {
			logger.Errorf("Pipeline: post-scan maintenance failed: %v", err)
		} else {
			p.publishEvent(domain.MaintenanceCompleted, map[string]interface{}{
				"scan_id": result.ScanID,
			})
		}
	}

	p.startEnrichment()
}

// startEnrichment launches a best-effort background enrichment pass,
// cancelling any pass still in flight from a previous scan.
func (p *Pipeline) startEnrichment() {
	if p.enricher == nil {
		return
	}

	p.mu.Lock()
	if p.enrichCancel != nil {
		p.enrichCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.enrichCancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		updated, err := p.enricher.FetchMissing(ctx, p.enrichBatch)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debugf("Pipeline: enrichment pass cancelled")
				return
			}
			logger.Warnf("Pipeline: enrichment pass failed: %v", err)
			p.publishEvent(domain.EnrichmentFailed, map[string]interface{}{
				"artist": "",
				"error":  err.Error(),
			})
			return
		}
		if updated > 0 {
			logger.Infof("Pipeline: enriched %d artists", updated)
		}
	}()
}

// Shutdown stops watching, cancels in-flight enrichment and waits for
// background work to finish.
func (p *Pipeline) Shutdown() {
	p.StopWatching()

	p.mu.Lock()
	if p.enrichCancel != nil {
		p.enrichCancel()
		p.enrichCancel = nil
	}
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("Pipeline shutdown complete")
}

func (p *Pipeline) publishEvent(eventType domain.EventType, data map[string]interface{}) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(domain.Event{
		AggregateType: "pipeline",
		AggregateID:   "pipeline",
		EventType:     eventType,
		EventData:     data,
	}); err != nil {
		logger.Errorf("Failed to publish %s event: %v", eventType, err)
	}
}
