package jobs

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/model"
	"github.com/finsight/reportminer/internal/store"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 32
)

type task struct {
	reportID string
	doc      model.Document
}

// Processor owns the report state machine: submissions create a PENDING
// report and enqueue it; a bounded worker pool drives each report through
// PROCESSING into exactly one of COMPLETED or FAILED. Workers are the only
// writers for a report after submission.
type Processor struct {
	store    store.Store
	pipeline *Pipeline
	tasks    chan task

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewProcessor creates a processor with the given pool size and queue depth.
func NewProcessor(st store.Store, pipeline *Pipeline, workers, queueSize int) *Processor {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &Processor{
		store:    st,
		pipeline: pipeline,
		tasks:    make(chan task, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit persists a new PENDING report for the document and hands it to the
// worker pool. When the queue is full the report is failed immediately
// rather than blocking the caller.
func (p *Processor) Submit(ctx context.Context, doc model.Document) (*model.Report, error) {
	report, err := p.store.CreateReport(ctx, doc.FileName)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: create report")
	}

	select {
	case p.tasks <- task{reportID: report.ID, doc: doc}:
		return report, nil
	default:
		msg := "processing queue full"
		if err := p.store.UpdateStatus(ctx, report.ID, model.StatusFailed, msg); err != nil {
			zap.L().Error("jobs: fail report on full queue", zap.String("report", report.ID), zap.Error(err))
		}
		return report, eris.New("jobs: " + msg)
	}
}

// Close stops accepting work and waits for in-flight reports to finish.
func (p *Processor) Close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.process(t)
	}
}

func (p *Processor) process(t task) {
	// Workers outlive any request; report processing gets its own context.
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("jobs: worker panic", zap.String("report", t.reportID), zap.Any("panic", r))
			p.fail(ctx, t.reportID, "internal error during processing")
		}
	}()

	if err := p.store.UpdateStatus(ctx, t.reportID, model.StatusProcessing, ""); err != nil {
		zap.L().Error("jobs: mark processing", zap.String("report", t.reportID), zap.Error(err))
		return
	}

	records, err := p.pipeline.Run(ctx, t.doc)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "processing failed"
		}
		p.fail(ctx, t.reportID, msg)
		return
	}

	if err := p.store.SetResult(ctx, t.reportID, records); err != nil {
		zap.L().Error("jobs: store result", zap.String("report", t.reportID), zap.Error(err))
		p.fail(ctx, t.reportID, "failed to persist result")
	}
}

func (p *Processor) fail(ctx context.Context, reportID, msg string) {
	if err := p.store.UpdateStatus(ctx, reportID, model.StatusFailed, msg); err != nil {
		zap.L().Error("jobs: mark failed", zap.String("report", reportID), zap.Error(err))
	}
}
