// Package tasks moves document processing off the request path via NATS.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Job is one document processing request on the queue.
type Job struct {
	TaskID     string    `json:"task_id"`
	DocumentID uuid.UUID `json:"document_id"`
	UserID     uuid.UUID `json:"user_id"`
	FilePath   string    `json:"file_path"`
	Filename   string    `json:"filename"`
}

// Config holds queue connection settings.
type Config struct {
	URL     string
	Subject string
	Queue   string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url required")
	}
	if c.Subject == "" {
		return fmt.Errorf("subject required")
	}
	if c.Queue == "" {
		return fmt.Errorf("queue group required")
	}
	return nil
}

// Connect dials NATS with reconnect enabled.
func Connect(config Config) (*nats.Conn, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	nc, err := nats.Connect(config.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", config.URL, err)
	}
	return nc, nil
}

// Dispatcher publishes processing jobs.
type Dispatcher struct {
	nc      *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher on an existing connection.
func NewDispatcher(nc *nats.Conn, subject string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{nc: nc, subject: subject, logger: logger}
}

// Enqueue publishes a processing job and returns its task id.
func (d *Dispatcher) Enqueue(_ context.Context, docID, userID uuid.UUID, filePath, filename string) (string, error) {
	job := Job{
		TaskID:     uuid.New().String(),
		DocumentID: docID,
		UserID:     userID,
		FilePath:   filePath,
		Filename:   filename,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encoding job: %w", err)
	}
	if err := d.nc.Publish(d.subject, data); err != nil {
		return "", fmt.Errorf("publishing job: %w", err)
	}

	d.logger.Info("job enqueued",
		zap.String("task_id", job.TaskID),
		zap.String("document_id", docID.String()),
	)
	return job.TaskID, nil
}

// Processor runs the ingest pipeline for a dequeued job.
type Processor interface {
	Process(ctx context.Context, docID, userID uuid.UUID, filePath, filename string) error
}

// Worker consumes processing jobs from the queue group. Multiple workers
// share the group so each job is handled once.
type Worker struct {
	nc        *nats.Conn
	subject   string
	queue     string
	processor Processor
	logger    *zap.Logger

	sub *nats.Subscription
}

// NewWorker creates a Worker on an existing connection.
func NewWorker(nc *nats.Conn, subject, queue string, processor Processor, logger *zap.Logger) *Worker {
	return &Worker{
		nc:        nc,
		subject:   subject,
		queue:     queue,
		processor: processor,
		logger:    logger,
	}
}

// Start subscribes and begins handling jobs until Stop or connection close.
// Handler errors are logged; the processor already records failure on the
// document, so the job is not redelivered.
func (w *Worker) Start(ctx context.Context) error {
	sub, err := w.nc.QueueSubscribe(w.subject, w.queue, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			w.logger.Error("discarding malformed job", zap.Error(err))
			return
		}

		w.logger.Info("job dequeued",
			zap.String("task_id", job.TaskID),
			zap.String("document_id", job.DocumentID.String()),
		)
		if err := w.processor.Process(ctx, job.DocumentID, job.UserID, job.FilePath, job.Filename); err != nil {
			w.logger.Error("job failed",
				zap.String("task_id", job.TaskID),
				zap.String("document_id", job.DocumentID.String()),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", w.subject, err)
	}
	w.sub = sub
	w.logger.Info("worker started",
		zap.String("subject", w.subject),
		zap.String("queue", w.queue),
	)
	return nil
}

// Stop drains the subscription so in-flight jobs finish.
func (w *Worker) Stop() error {
	if w.sub == nil {
		return nil
	}
	if err := w.sub.Drain(); err != nil {
		return fmt.Errorf("draining subscription: %w", err)
	}
	return nil
}
