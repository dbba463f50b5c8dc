// Package broker admits approval-gated requests from untrusted origins,
// suspends callers until a user decision arrives and runs approved
// operations.
//
// Every request moves through
//
//	PENDING -> APPROVED -> (executing) -> settled
//	PENDING -> REJECTED -> settled
//	PENDING -> abandoned -> settled
//
// and never leaves the settled state. All transitions happen under one
// mutex; operations execute outside it.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/atinyakov/zkkeeper/internal/errs"
	"github.com/atinyakov/zkkeeper/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Enqueue and Resolve after Close.
var ErrClosed = errors.New("broker is closed")

const (
	defaultRetention     = 10 * time.Minute
	notificationDeadline = 5 * time.Second
)

// Request is what an Executor receives for an approved request.
type Request struct {
	ID      string
	Type    models.RequestType
	Payload json.RawMessage
	Origin  string
}

// Executor runs an approved request.
type Executor interface {
	Execute(ctx context.Context, req Request) (any, error)
}

// Notifier is told about new and settled requests. Calls are asynchronous.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Recorder appends to the operation log.
type Recorder interface {
	TrackOperation(ctx context.Context, entry models.OperationLogEntry) error
}

type indexKey struct {
	typ    models.RequestType
	origin string
}

type record struct {
	summary models.PendingRequestSummary
	payload json.RawMessage

	done      chan struct{}
	result    any
	err       error
	timer     *time.Timer
	settledAt time.Time
}

// Broker is safe for concurrent use.
type Broker struct {
	exec     Executor
	notifier Notifier
	recorder Recorder
	log      *zap.Logger

	timeout   time.Duration
	retention time.Duration
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	requests map[string]*record
	index    map[indexKey]string
	closed   bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithTimeout settles requests still undecided after d with
// errs.ErrRequestTimedOut. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Broker) { b.timeout = d }
}

// WithSettledRetention sets how long settled requests are kept so a repeated
// decision reports errs.ErrAlreadyResolved.
func WithSettledRetention(d time.Duration) Option {
	return func(b *Broker) { b.retention = d }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(b *Broker) { b.notifier = n }
}

// WithRecorder sets the operation log used for rejected and discarded
// decisions.
func WithRecorder(r Recorder) Option {
	return func(b *Broker) { b.recorder = r }
}

// New creates a Broker that runs approved requests with exec.
func New(exec Executor, log *zap.Logger, opts ...Option) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		exec:      exec,
		log:       log,
		retention: defaultRetention,
		now:       time.Now,
		baseCtx:   ctx,
		cancel:    cancel,
		requests:  make(map[string]*record),
		index:     make(map[indexKey]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue records a PENDING request and returns its id. A second unsettled
// request of the same type from the same origin fails with
// errs.ErrDuplicatePendingRequest.
func (b *Broker) Enqueue(ctx context.Context, typ models.RequestType, payload json.RawMessage, origin string) (string, error) {
	if !typ.Valid() {
		return "", errs.WithMetadata(errs.CodeUnknownOperation, "unknown request type", map[string]string{"type": string(typ)})
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrClosed
	}
	key := indexKey{typ: typ, origin: origin}
	if existing, ok := b.index[key]; ok {
		return "", errs.WithMetadata(errs.CodeDuplicatePendingRequest, errs.ErrDuplicatePendingRequest.Message,
			map[string]string{"id": existing, "type": string(typ), "origin": origin})
	}

	rec := &record{
		summary: models.PendingRequestSummary{
			ID:        uuid.NewString(),
			Type:      typ,
			Payload:   redact(payload),
			Origin:    origin,
			CreatedAt: b.now().UTC(),
			Status:    models.StatusPending,
		},
		payload: slices.Clone(payload),
		done:    make(chan struct{}),
	}
	id := rec.summary.ID
	b.requests[id] = rec
	b.index[key] = id

	if b.timeout > 0 {
		rec.timer = time.AfterFunc(b.timeout, func() { b.expire(id) })
	}

	b.log.Info("request enqueued",
		zap.String("id", id),
		zap.String("type", string(typ)),
		zap.String("origin", origin))
	b.notifyLocked(models.EventRequestCreated, rec)
	return id, nil
}

// Await blocks until request id is settled and returns its result.
// If ctx ends first, the request is abandoned: it is settled with
// errs.ErrRequestAbandoned and any later decision is discarded.
func (b *Broker) Await(ctx context.Context, id string) (any, error) {
	b.mu.Lock()
	rec, ok := b.requests[id]
	b.mu.Unlock()
	if !ok {
		return nil, errs.ErrRequestNotFound
	}

	select {
	case <-rec.done:
		return rec.result, rec.err
	case <-ctx.Done():
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.abandonLocked(rec)
	if rec.summary.Settled {
		return rec.result, rec.err
	}
	// Approved and still executing: the result is dropped when it arrives.
	return nil, errs.Wrap(errs.CodeRequestAbandoned, errs.ErrRequestAbandoned.Message, ctx.Err())
}

// Submit enqueues a request and waits for its outcome.
func (b *Broker) Submit(ctx context.Context, typ models.RequestType, payload json.RawMessage, origin string) (any, error) {
	id, err := b.Enqueue(ctx, typ, payload, origin)
	if err != nil {
		return nil, err
	}
	return b.Await(ctx, id)
}

// Resolve applies a user decision exactly once. Approving starts the
// operation with finalPayload, or the original payload when finalPayload is
// empty, and returns without waiting for it. A decision for a request that
// was abandoned or timed out is accepted but discarded.
func (b *Broker) Resolve(ctx context.Context, id string, decision models.Decision, finalPayload json.RawMessage) error {
	if !decision.Valid() {
		return errs.WithMetadata(errs.CodeInvalidPayload, "decision must be APPROVED or REJECTED",
			map[string]string{"decision": string(decision)})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	rec, ok := b.requests[id]
	if !ok {
		return errs.ErrRequestNotFound
	}
	if rec.summary.Status != models.StatusPending {
		return errs.ErrAlreadyResolved
	}

	rec.summary.Status = models.RequestStatus(decision)

	if rec.summary.Settled {
		b.log.Info("late decision discarded",
			zap.String("id", id),
			zap.String("decision", string(decision)),
			zap.Bool("abandoned", rec.summary.Abandoned))
		b.recordLocked(ctx, models.OperationRequestDiscarded, rec, models.OutcomeDropped)
		return nil
	}

	if rec.timer != nil {
		rec.timer.Stop()
	}

	if decision == models.DecisionReject {
		b.log.Info("request rejected", zap.String("id", id), zap.String("type", string(rec.summary.Type)))
		b.recordLocked(ctx, models.OperationRequestRejected, rec, models.OutcomeRejected)
		b.settleLocked(rec, nil, errs.ErrRequestRejected)
		return nil
	}

	payload := rec.payload
	if len(finalPayload) > 0 {
		payload = restorePrivate(finalPayload, rec.payload)
	}
	req := Request{ID: id, Type: rec.summary.Type, Payload: payload, Origin: rec.summary.Origin}

	b.log.Info("request approved", zap.String("id", id), zap.String("type", string(rec.summary.Type)))
	b.wg.Add(1)
	go b.run(rec, req)
	return nil
}

// List returns a snapshot of requests that pass filter, oldest first.
func (b *Broker) List(filter models.PendingRequestFilter) []models.PendingRequestSummary {
	b.mu.Lock()
	out := make([]models.PendingRequestSummary, 0, len(b.requests))
	for _, rec := range b.requests {
		if filter.Match(rec.summary) {
			s := rec.summary
			s.Payload = slices.Clone(s.Payload)
			out = append(out, s)
		}
	}
	b.mu.Unlock()

	slices.SortFunc(out, func(a, c models.PendingRequestSummary) int {
		if n := a.CreatedAt.Compare(c.CreatedAt); n != 0 {
			return n
		}
		switch {
		case a.ID < c.ID:
			return -1
		case a.ID > c.ID:
			return 1
		}
		return 0
	})
	return out
}

// AbandonOrigin abandons every unsettled request of origin, as when the
// caller's page goes away. It returns how many were abandoned.
func (b *Broker) AbandonOrigin(origin string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, rec := range b.requests {
		if rec.summary.Origin == origin && !rec.summary.Settled && !rec.summary.Abandoned {
			b.abandonLocked(rec)
			n++
		}
	}
	if n > 0 {
		b.log.Info("origin abandoned", zap.String("origin", origin), zap.Int("requests", n))
	}
	return n
}

// Close abandons all requests, cancels running operations and waits for
// background work to finish.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, rec := range b.requests {
		b.abandonLocked(rec)
	}
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

func (b *Broker) run(rec *record, req Request) {
	defer b.wg.Done()

	result, err := b.exec.Execute(b.baseCtx, req)
	if err != nil {
		b.log.Warn("approved request failed",
			zap.String("id", req.ID),
			zap.String("type", string(req.Type)),
			zap.Error(err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.settleLocked(rec, result, err)
}

func (b *Broker) expire(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.requests[id]
	if !ok || rec.summary.Settled || rec.summary.Status != models.StatusPending {
		return
	}
	b.log.Info("request timed out", zap.String("id", id), zap.String("type", string(rec.summary.Type)))
	b.settleLocked(rec, nil, errs.ErrRequestTimedOut)
}

// abandonLocked marks rec abandoned. A request still waiting for a decision
// is settled at once; an executing one settles when the operation returns.
func (b *Broker) abandonLocked(rec *record) {
	if rec.summary.Settled || rec.summary.Abandoned {
		return
	}
	rec.summary.Abandoned = true
	if rec.summary.Status == models.StatusPending {
		if rec.timer != nil {
			rec.timer.Stop()
		}
		b.settleLocked(rec, nil, errs.ErrRequestAbandoned)
	}
}

func (b *Broker) settleLocked(rec *record, result any, err error) {
	if rec.summary.Settled {
		return
	}
	rec.result = result
	rec.err = err
	rec.summary.Settled = true
	rec.settledAt = b.now()

	key := indexKey{typ: rec.summary.Type, origin: rec.summary.Origin}
	if b.index[key] == rec.summary.ID {
		delete(b.index, key)
	}
	close(rec.done)
	b.notifyLocked(models.EventRequestSettled, rec)
}

func (b *Broker) notifyLocked(event models.NotificationEvent, rec *record) {
	if b.notifier == nil {
		return
	}
	n := models.Notification{Event: event, Request: rec.summary}
	n.Request.Payload = slices.Clone(n.Request.Payload)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(b.baseCtx), notificationDeadline)
		defer cancel()
		if err := b.notifier.Notify(ctx, n); err != nil {
			b.log.Warn("notification failed", zap.String("id", n.Request.ID), zap.Error(err))
		}
	}()
}

func (b *Broker) recordLocked(ctx context.Context, op models.Operation, rec *record, outcome string) {
	if b.recorder == nil {
		return
	}
	entry := models.OperationLogEntry{
		ID:        uuid.NewString(),
		Operation: op,
		Origin:    rec.summary.Origin,
		Outcome:   outcome,
		CreatedAt: b.now().UTC(),
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.recorder.TrackOperation(context.WithoutCancel(ctx), entry); err != nil {
			b.log.Warn("operation log write failed", zap.String("operation", string(op)), zap.Error(err))
		}
	}()
}
