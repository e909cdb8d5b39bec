package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sevadesk/config"
	"sevadesk/internal/logger"
	"sevadesk/internal/models"
	"sevadesk/internal/repositories"
	"sevadesk/internal/syncerr"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// SyncGateway is the single door to the remote store. Every record kind
// goes through the same path: validate, encode, retry, and on exhausted
// retries optionally fall back to the offline queue. Reads are deduplicated
// in flight and served from a short-lived cache that mutations invalidate
// per table.
type SyncGateway struct {
	transport *TransportClient
	retry     *RetryPolicy
	queue     repositories.QueueRepository
	cache     *gocache.Cache
	flight    singleflight.Group
	log       logger.Logger
}

func NewSyncGateway(cfg config.Config, transport *TransportClient, retry *RetryPolicy, queue repositories.QueueRepository) *SyncGateway {
	return &SyncGateway{
		transport: transport,
		retry:     retry,
		queue:     queue,
		cache:     gocache.New(cfg.ReadCacheTTL(), 2*cfg.ReadCacheTTL()),
		log:       logger.New("SyncGateway"),
	}
}

type mutationSettings struct {
	queueOnFailure bool
}

// MutationOption tunes a single gateway mutation.
type MutationOption func(*mutationSettings)

// QueueOnFailure makes the mutation fall back to the durable offline queue
// when the server stays unreachable past the retry budget. Fatal failures
// (validation, auth, conflict) are never queued.
func QueueOnFailure() MutationOption {
	return func(s *mutationSettings) { s.queueOnFailure = true }
}

func applyMutationOptions(opts []MutationOption) mutationSettings {
	var settings mutationSettings
	for _, opt := range opts {
		opt(&settings)
	}
	return settings
}

// Get fetches one record by id. Concurrent callers for the same id share a
// single network round trip; the winner's row feeds every waiter, and each
// waiter decodes its own copy.
func Get[T any, PT models.Wire[T]](ctx context.Context, g *SyncGateway, session Session, id string) (PT, error) {
	table := PT(new(T)).Table()
	key := table + "/" + id

	if cached, found := g.cache.Get(key); found {
		return decodeInto[T, PT](cached.(models.Payload))
	}

	row, err, _ := g.flight.Do(key, func() (any, error) {
		query := url.Values{}
		query.Set("id", "eq."+id)
		query.Set("limit", "1")

		rows, err := g.fetchRows(ctx, session, table, query)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, &syncerr.NotFoundError{Table: table, ID: id}
		}
		g.cache.Set(key, rows[0], gocache.DefaultExpiration)
		return rows[0], nil
	})
	if err != nil {
		return nil, err
	}

	return decodeInto[T, PT](row.(models.Payload))
}

// List fetches all records matching the PostgREST-style filters in query.
// Results are cached under the exact filter set until the next mutation on
// the same table.
func List[T any, PT models.Wire[T]](ctx context.Context, g *SyncGateway, session Session, query url.Values) ([]PT, error) {
	table := PT(new(T)).Table()
	key := table + "?" + query.Encode()

	if cached, found := g.cache.Get(key); found {
		return decodeAll[T, PT](cached.([]models.Payload))
	}

	rows, err, _ := g.flight.Do(key, func() (any, error) {
		fetched, err := g.fetchRows(ctx, session, table, query)
		if err != nil {
			return nil, err
		}
		g.cache.Set(key, fetched, gocache.DefaultExpiration)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return decodeAll[T, PT](rows.([]models.Payload))
}

// Create submits a new record. The client assigns the id up front and
// reuses it as the idempotency key, so a retry after an ambiguous failure
// can never produce a duplicate row.
func Create[T any, PT models.Wire[T]](ctx context.Context, g *SyncGateway, session Session, rec PT, opts ...MutationOption) (PT, error) {
	log := g.log.Function("Create")
	settings := applyMutationOptions(opts)

	payload, err := rec.ToWire()
	if err != nil {
		return nil, err
	}

	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
		payload["id"] = id
	}

	table := rec.Table()
	rows, err := g.mutate(ctx, session, Request{
		Method:         http.MethodPost,
		Table:          table,
		Body:           payload,
		IdempotencyKey: id,
	})
	if err != nil {
		return nil, g.queueFallback(ctx, settings, &models.QueuedOperation{
			IdempotencyKey: id,
			Table:          table,
			Verb:           models.OpCreate,
			TargetID:       id,
			Payload:        encodeQueuePayload(payload),
		}, err)
	}

	g.invalidateTable(table)
	log.Debug("Record created", "table", table, "id", id)

	row := payload
	if len(rows) > 0 {
		row = rows[0]
	}
	return decodeInto[T, PT](row)
}

// Update patches an existing record, using its last seen updated_at as the
// optimistic-concurrency precondition. An empty match is disambiguated with
// a follow-up read: row gone means NotFoundError, row changed means
// ConflictError. Conflicts are never retried or queued.
func Update[T any, PT models.Wire[T]](ctx context.Context, g *SyncGateway, session Session, rec PT, opts ...MutationOption) (PT, error) {
	log := g.log.Function("Update")
	settings := applyMutationOptions(opts)

	payload, err := rec.ToWire()
	if err != nil {
		return nil, err
	}

	id, _ := payload["id"].(string)
	if id == "" {
		return nil, &syncerr.ValidationError{Field: "id", Reason: "update requires a server-assigned id"}
	}
	knownUpdatedAt, _ := payload["updated_at"].(string)
	if knownUpdatedAt == "" {
		return nil, &syncerr.ValidationError{Field: "updated_at", Reason: "update requires the last seen updated_at"}
	}

	patch := make(models.Payload, len(payload))
	for field, value := range payload {
		patch[field] = value
	}
	// The server owns the bookkeeping fields; the precondition rides in the
	// query string, not the body.
	delete(patch, "id")
	delete(patch, "created_at")
	delete(patch, "updated_at")

	table := rec.Table()
	key := uuid.NewString()

	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("updated_at", "eq."+knownUpdatedAt)

	rows, err := g.mutate(ctx, session, Request{
		Method:         http.MethodPatch,
		Table:          table,
		Query:          query,
		Body:           patch,
		IdempotencyKey: key,
	})
	if err != nil {
		known, _ := time.Parse(time.RFC3339Nano, knownUpdatedAt)
		return nil, g.queueFallback(ctx, settings, &models.QueuedOperation{
			IdempotencyKey: key,
			Table:          table,
			Verb:           models.OpUpdate,
			TargetID:       id,
			KnownUpdatedAt: known,
			Payload:        encodeQueuePayload(patch),
		}, err)
	}

	if len(rows) == 0 {
		return nil, g.resolveEmptyPatch(ctx, session, table, id)
	}

	g.invalidateTable(table)
	log.Debug("Record updated", "table", table, "id", id)
	return decodeInto[T, PT](rows[0])
}

// Deactivate applies the kind's deactivation patch to one record. Records
// are never hard-deleted from the client; kinds that do not support
// deactivation (append-only ones) reject it locally.
func Deactivate[T any, PT models.Wire[T]](ctx context.Context, g *SyncGateway, session Session, id string, knownUpdatedAt time.Time, opts ...MutationOption) error {
	log := g.log.Function("Deactivate")
	settings := applyMutationOptions(opts)

	if id == "" {
		return &syncerr.ValidationError{Field: "id", Reason: "deactivate requires a server-assigned id"}
	}

	patch, err := PT(new(T)).DeactivatePatch()
	if err != nil {
		return err
	}

	table := PT(new(T)).Table()
	key := uuid.NewString()

	query := url.Values{}
	query.Set("id", "eq."+id)
	if !knownUpdatedAt.IsZero() {
		query.Set("updated_at", "eq."+knownUpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	rows, err := g.mutate(ctx, session, Request{
		Method:         http.MethodPatch,
		Table:          table,
		Query:          query,
		Body:           patch,
		IdempotencyKey: key,
	})
	if err != nil {
		return g.queueFallback(ctx, settings, &models.QueuedOperation{
			IdempotencyKey: key,
			Table:          table,
			Verb:           models.OpDeactivate,
			TargetID:       id,
			KnownUpdatedAt: knownUpdatedAt,
			Payload:        encodeQueuePayload(patch),
		}, err)
	}

	if len(rows) == 0 {
		return g.resolveEmptyPatch(ctx, session, table, id)
	}

	g.invalidateTable(table)
	log.Debug("Record deactivated", "table", table, "id", id)
	return nil
}

// EnqueueCreate buffers a create without attempting the network first.
// Used when an earlier record in the same submission already went to the
// queue: a child row must not reach the server before its parent, so it
// joins the FIFO line directly. Returns the client-assigned id.
func (g *SyncGateway) EnqueueCreate(ctx context.Context, rec models.Record) (string, error) {
	payload, err := rec.ToWire()
	if err != nil {
		return "", err
	}

	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
		payload["id"] = id
	}

	err = g.queue.Append(ctx, &models.QueuedOperation{
		IdempotencyKey: id,
		Table:          rec.Table(),
		Verb:           models.OpCreate,
		TargetID:       id,
		Payload:        encodeQueuePayload(payload),
	})
	if err != nil {
		return "", err
	}

	g.invalidateTable(rec.Table())
	return id, nil
}

// Replay re-submits one queued operation against the live server, reusing
// the idempotency key recorded at queue time. Payloads travel as raw wire
// maps so replay needs no knowledge of the record kind.
func (g *SyncGateway) Replay(ctx context.Context, session Session, op models.QueuedOperation) error {
	log := g.log.Function("Replay")

	var payload models.Payload
	if len(op.Payload) > 0 {
		if err := json.Unmarshal(op.Payload, &payload); err != nil {
			return &syncerr.MalformedDataError{Field: "payload", Reason: "queued payload is not valid JSON"}
		}
	}

	switch op.Verb {
	case models.OpCreate:
		_, err := g.mutate(ctx, session, Request{
			Method:         http.MethodPost,
			Table:          op.Table,
			Body:           payload,
			IdempotencyKey: op.IdempotencyKey,
		})
		if err != nil {
			return err
		}

	case models.OpUpdate, models.OpDeactivate:
		query := url.Values{}
		query.Set("id", "eq."+op.TargetID)
		if !op.KnownUpdatedAt.IsZero() {
			query.Set("updated_at", "eq."+op.KnownUpdatedAt.UTC().Format(time.RFC3339Nano))
		}

		rows, err := g.mutate(ctx, session, Request{
			Method:         http.MethodPatch,
			Table:          op.Table,
			Query:          query,
			Body:           payload,
			IdempotencyKey: op.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return g.resolveEmptyPatch(ctx, session, op.Table, op.TargetID)
		}

	default:
		return &syncerr.MalformedDataError{Field: "verb", Reason: fmt.Sprintf("unknown queued verb %q", op.Verb)}
	}

	g.invalidateTable(op.Table)
	log.Info("Queued operation replayed", "table", op.Table, "verb", op.Verb, "idempotencyKey", op.IdempotencyKey)
	return nil
}

func (g *SyncGateway) fetchRows(ctx context.Context, session Session, table string, query url.Values) ([]models.Payload, error) {
	resp, err := RunFor(ctx, g.retry, "GET "+table, func(ctx context.Context) (*Response, error) {
		return g.transport.Execute(ctx, session, Request{
			Method: http.MethodGet,
			Table:  table,
			Query:  query,
		})
	})
	if err != nil {
		return nil, err
	}
	return decodeRows(table, resp.Body)
}

func (g *SyncGateway) mutate(ctx context.Context, session Session, req Request) ([]models.Payload, error) {
	resp, err := RunFor(ctx, g.retry, req.Method+" "+req.Table, func(ctx context.Context) (*Response, error) {
		return g.transport.Execute(ctx, session, req)
	})
	if err != nil {
		return nil, err
	}
	return decodeRows(req.Table, resp.Body)
}

// queueFallback buffers the failed mutation when the caller opted in and
// the failure was transient. The original cause rides inside QueuedError so
// the caller can still see why the network path was abandoned.
func (g *SyncGateway) queueFallback(ctx context.Context, settings mutationSettings, op *models.QueuedOperation, cause error) error {
	if !settings.queueOnFailure || syncerr.IsFatalForReplay(cause) {
		return cause
	}

	log := g.log.Function("queueFallback")
	if err := g.queue.Append(ctx, op); err != nil {
		log.Er("Failed to queue operation after transport failure", err,
			"table", op.Table, "verb", op.Verb)
		return cause
	}

	g.invalidateTable(op.Table)
	return &syncerr.QueuedError{IdempotencyKey: op.IdempotencyKey, Cause: cause}
}

// resolveEmptyPatch tells apart the two reasons a preconditioned PATCH can
// match nothing: the row is gone, or someone else updated it first.
func (g *SyncGateway) resolveEmptyPatch(ctx context.Context, session Session, table, id string) error {
	query := url.Values{}
	query.Set("id", "eq."+id)
	query.Set("limit", "1")

	rows, err := g.fetchRows(ctx, session, table, query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &syncerr.NotFoundError{Table: table, ID: id}
	}
	return &syncerr.ConflictError{Table: table, ID: id}
}

// invalidateTable drops every cached read touching table. Coarse but
// correct: the cache exists to absorb bursts between mutations, not to be
// a source of truth.
func (g *SyncGateway) invalidateTable(table string) {
	for key := range g.cache.Items() {
		if strings.HasPrefix(key, table+"/") || strings.HasPrefix(key, table+"?") {
			g.cache.Delete(key)
		}
	}
}

func decodeRows(table string, body []byte) ([]models.Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var row models.Payload
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, &syncerr.MalformedDataError{Field: table, Reason: "response is not a JSON object"}
		}
		return []models.Payload{row}, nil
	}

	var rows []models.Payload
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &syncerr.MalformedDataError{Field: table, Reason: "response is not a JSON array"}
	}
	return rows, nil
}

func decodeInto[T any, PT models.Wire[T]](row models.Payload) (PT, error) {
	rec := PT(new(T))
	if err := rec.FromWire(row); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeAll[T any, PT models.Wire[T]](rows []models.Payload) ([]PT, error) {
	records := make([]PT, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeInto[T, PT](row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeQueuePayload(payload models.Payload) datatypes.JSON {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}
