package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vksagar82/society-management-app-sub001/internal/auth"
	"github.com/vksagar82/society-management-app-sub001/internal/db/bunx"
	"github.com/vksagar82/society-management-app-sub001/internal/db/models"
	"github.com/vksagar82/society-management-app-sub001/internal/repository"
	"github.com/vksagar82/society-management-app-sub001/internal/telemetry"
)

const tracerName = "societyapi/services/audit"

// writeTimeout bounds one persistence attempt.
const writeTimeout = 5 * time.Second

// Entry describes one audited operation. Old and New are structs or maps;
// they are snapshotted by JSON field name and redacted before queueing.
type Entry struct {
	Action     string
	EntityType string
	EntityID   string
	SocietyID  string
	ActorID    string
	Old        any
	New        any

	// Metadata overrides the request metadata carried by ctx.
	Metadata *auth.RequestMetadata
}

// Recorder records audit entries. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// ErrWriterClosed is returned by Close when called twice.
var ErrWriterClosed = errors.New("audit writer closed")

type job struct {
	ctx context.Context
	log *models.AuditLog
}

// Writer persists audit entries from a bounded queue drained by a fixed
// number of workers. Persistence failures and a full queue are logged and
// counted; they are never returned to the caller.
type Writer struct {
	repo    repository.AuditLogRepository
	logger  *zap.Logger
	metrics *telemetry.AuditMetrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

var _ Recorder = (*Writer)(nil)

// NewWriter starts workers goroutines draining a queue of queueSize entries.
func NewWriter(repo repository.AuditLogRepository, logger *zap.Logger, queueSize, workers int) *Writer {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		queue:  make(chan job, queueSize),
	}
	w.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go w.run()
	}
	return w
}

// WithMetrics attaches audit counters.
func (w *Writer) WithMetrics(m *telemetry.AuditMetrics) *Writer {
	w.metrics = m
	return w
}

// Record redacts e and queues it for persistence. It returns immediately.
func (w *Writer) Record(ctx context.Context, e Entry) {
	log := w.build(ctx, e)

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop(ctx, log, "writer closed")
		return
	}
	select {
	case w.queue <- job{ctx: context.WithoutCancel(ctx), log: log}:
	default:
		w.drop(ctx, log, "queue full")
	}
}

func (w *Writer) build(ctx context.Context, e Entry) *models.AuditLog {
	oldValues, err := Snapshot(e.Old)
	if err != nil {
		w.logger.Warn("audit snapshot failed", zap.String("entity_type", e.EntityType), zap.Error(err))
	}
	newValues, err := Snapshot(e.New)
	if err != nil {
		w.logger.Warn("audit snapshot failed", zap.String("entity_type", e.EntityType), zap.Error(err))
	}

	if ce := w.logger.Check(zap.DebugLevel, "audit entry"); ce != nil {
		ce.Write(
			zap.String("action", e.Action),
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID),
			zap.Any("changes", RedactedDiff(oldValues, newValues)),
		)
	}

	meta := auth.GetRequestMetadata(ctx)
	if e.Metadata != nil {
		meta = *e.Metadata
	}

	log := &models.AuditLog{
		ID:         bunx.NewUUIDv7(),
		SocietyID:  optional(e.SocietyID),
		UserID:     optional(e.ActorID),
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		CreatedAt:  w.now().UTC(),
	}
	if oldValues != nil {
		log.OldValues = models.JSONMap(Redact(oldValues))
	}
	if newValues != nil {
		log.NewValues = models.JSONMap(Redact(newValues))
	}
	return log
}

func (w *Writer) drop(ctx context.Context, log *models.AuditLog, reason string) {
	w.metrics.RecordDropped(ctx, log.EntityType)
	w.logger.Error("audit entry dropped",
		zap.String("reason", reason),
		zap.String("action", log.Action),
		zap.String("entity_type", log.EntityType),
		zap.String("entity_id", log.EntityID),
		zap.Stringp("society_id", log.SocietyID),
	)
}

func (w *Writer) run() {
	defer w.wg.Done()
	for j := range w.queue {
		w.persist(j)
	}
}

func (w *Writer) persist(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, writeTimeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, tracerName, "audit.Write",
		attribute.String(telemetry.AttrAuditAction, j.log.Action),
		attribute.String(telemetry.AttrAuditEntityType, j.log.EntityType),
		attribute.String(telemetry.AttrAuditEntityID, j.log.EntityID),
	)
	defer span.End()

	if err := w.repo.Create(ctx, j.log); err != nil {
		telemetry.RecordError(span, err)
		w.metrics.RecordFailure(ctx, j.log.EntityType)
		w.logger.Error("audit write failed",
			zap.String("action", j.log.Action),
			zap.String("entity_type", j.log.EntityType),
			zap.String("entity_id", j.log.EntityID),
			zap.Stringp("society_id", j.log.SocietyID),
			zap.Error(err),
		)
		return
	}
	w.metrics.RecordWritten(ctx, j.log.EntityType)
}

// Close stops accepting entries and waits for queued ones to be written or for ctx to end.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
