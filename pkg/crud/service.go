package crud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crudkit/crudkit/pkg/apperror"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/observability/tracing"
)

// Service implements the model-agnostic CRUD operations. It is stateless
// with respect to its own data: every call operates on the caller-supplied
// descriptor and payloads only, all durable state lives in the Store. A
// single Service is safe for concurrent use.
type Service struct {
	store     Store
	log       logger.Logger
	registry  *Registry
	validator PayloadValidator
	events    EventSink
	metrics   OperationRecorder
}

// ServiceOptions carries the optional collaborators of a Service. Every
// field may be left nil.
type ServiceOptions struct {
	// Registry resolves nested populate hops across models. Without it the
	// second populate level and related-model exemptions are unavailable.
	Registry *Registry
	// Validator checks create and update payloads against the descriptor
	// schema before any store call.
	Validator PayloadValidator
	// Events receives change notifications after successful writes.
	Events EventSink
	// Metrics observes operation outcomes and durations.
	Metrics OperationRecorder
}

// NewService creates a CRUD service over the given store.
func NewService(store Store, log logger.Logger, opts ServiceOptions) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		store:     store,
		log:       log,
		registry:  opts.Registry,
		validator: opts.Validator,
		events:    opts.Events,
		metrics:   opts.Metrics,
	}, nil
}

// Create checks for an existing document matching check, then inserts the
// payload. A matching document fails the call with Conflict and nothing is
// written. An empty check skips the duplicate check. The created document is
// returned with exempt fields masked.
func (s *Service) Create(ctx context.Context, desc Descriptor, payload Document, check Filter) (*Result, error) {
	return s.run(ctx, OpCreate, desc.Collection, func(ctx context.Context) (*Result, error) {
		return s.create(ctx, desc, payload, check)
	})
}

// CreateMany inserts a batch of payloads after running the duplicate checks
// sequentially, one check per payload. The batch is all-or-nothing with
// respect to duplicate detection: the first matching check aborts the call
// with Conflict before anything is inserted. Without store transactions the
// window between the checks and the insert remains open to concurrent
// writers; unique indexes from the descriptor's unique keys close it
// durably.
func (s *Service) CreateMany(ctx context.Context, desc Descriptor, payloads []Document, checks []Filter) (*Result, error) {
	return s.run(ctx, OpCreateMany, desc.Collection, func(ctx context.Context) (*Result, error) {
		return s.createMany(ctx, desc, payloads, checks)
	})
}

// Update applies the update expression to every document matching filter and
// returns the store's count metadata. Matching zero documents is a success
// with zero counts, updating a possibly absent resource is a valid caller
// pattern.
func (s *Service) Update(ctx context.Context, desc Descriptor, filter Filter, update Update) (*Result, error) {
	return s.run(ctx, OpUpdate, desc.Collection, func(ctx context.Context) (*Result, error) {
		return s.update(ctx, desc, filter, update)
	})
}

// GetMany reads a page of documents for one or more descriptors. Pagination
// and sorting come from params, the explicit filter is merged over the
// query-derived terms, and populate specs resolve relations on the results.
// A single descriptor yields a flat document list. Multiple descriptors fan
// out concurrently and yield per-model blocks in descriptor order with the
// aggregate doc_length as the sum.
func (s *Service) GetMany(ctx context.Context, descs []Descriptor, params Params, populate []Populate, filter Filter) (*Result, error) {
	collection := ""
	if len(descs) == 1 {
		collection = descs[0].Collection
	}
	return s.run(ctx, OpGetMany, collection, func(ctx context.Context) (*Result, error) {
		return s.getMany(ctx, descs, params, populate, filter)
	})
}

// GetOne returns the first document matching filter in the store's natural
// order, with relations resolved per the populate specs. No match fails with
// NotFound.
func (s *Service) GetOne(ctx context.Context, desc Descriptor, filter Filter, populate []Populate) (*Result, error) {
	return s.run(ctx, OpGetOne, desc.Collection, func(ctx context.Context) (*Result, error) {
		return s.getOne(ctx, desc, filter, populate)
	})
}

// Delete removes every document matching filter and returns the deleted
// count. The filter's selectivity is the caller's responsibility; matching
// zero documents is a success with a zero count.
func (s *Service) Delete(ctx context.Context, desc Descriptor, filter Filter) (*Result, error) {
	return s.run(ctx, OpDelete, desc.Collection, func(ctx context.Context) (*Result, error) {
		return s.delete(ctx, desc, filter)
	})
}

// run wraps an operation with the span and metrics bookkeeping shared by
// every entry point.
func (s *Service) run(ctx context.Context, operation, collection string, fn func(context.Context) (*Result, error)) (*Result, error) {
	ctx, span := tracing.StartEntitySpan(ctx, operation, collection)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, collection, outcomeOf(err), time.Since(start))
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.RecordSuccess(span)
	return result, nil
}

func (s *Service) create(ctx context.Context, desc Descriptor, payload Document, check Filter) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, apperror.NewValidation("payload is required")
	}
	if err := s.validatePayload(ctx, desc, payload); err != nil {
		return nil, err
	}
	if err := s.ensureAbsent(ctx, desc, check, -1); err != nil {
		return nil, err
	}

	created, err := s.store.InsertOne(ctx, desc.Collection, payload)
	if err != nil {
		return nil, apperror.NewInternal("failed to create document", err)
	}

	masked := desc.mask(created)
	s.notify(ctx, Change{Collection: desc.Collection, Action: ActionCreated, Docs: []Document{masked}})
	return newResult(MessageCreated, masked), nil
}

func (s *Service) createMany(ctx context.Context, desc Descriptor, payloads []Document, checks []Filter) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, apperror.NewValidation("at least one payload is required")
	}
	if checks != nil && len(checks) != len(payloads) {
		return nil, apperror.NewValidation("duplicate checks must match payloads one to one")
	}
	for i, payload := range payloads {
		if payload == nil {
			return nil, apperror.NewValidation(fmt.Sprintf("payload %d is required", i))
		}
		if err := s.validatePayload(ctx, desc, payload); err != nil {
			return nil, err
		}
	}

	// The checks run sequentially and strictly before the insert so the
	// first conflict aborts the batch with nothing written.
	for i, check := range checks {
		if err := s.ensureAbsent(ctx, desc, check, i); err != nil {
			return nil, err
		}
	}

	created, err := s.store.InsertMany(ctx, desc.Collection, payloads)
	if err != nil {
		return nil, apperror.NewInternal("failed to create documents", err)
	}

	masked := desc.maskAll(created)
	s.notify(ctx, Change{Collection: desc.Collection, Action: ActionCreated, Docs: masked})
	return newListResult(MessageCreated, masked, len(masked)), nil
}

func (s *Service) update(ctx context.Context, desc Descriptor, filter Filter, update Update) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if len(update) == 0 {
		return nil, apperror.NewValidation("update expression is required")
	}
	if err := s.validatePartial(ctx, desc, update); err != nil {
		return nil, err
	}

	result, err := s.store.UpdateMany(ctx, desc.Collection, filter, update)
	if err != nil {
		return nil, apperror.NewInternal("failed to update documents", err)
	}

	s.notify(ctx, Change{
		Collection: desc.Collection,
		Action:     ActionUpdated,
		Filter:     filter,
		Matched:    result.MatchedCount,
		Modified:   result.ModifiedCount,
	})
	return newResult(MessageUpdated, result), nil
}

func (s *Service) getMany(ctx context.Context, descs []Descriptor, params Params, populate []Populate, filter Filter) (*Result, error) {
	if len(descs) == 0 {
		return nil, apperror.NewValidation("at least one descriptor is required")
	}
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, err
		}
	}

	if len(descs) == 1 {
		docs, err := s.fetchMany(ctx, descs[0], params, populate, filter)
		if err != nil {
			return nil, err
		}
		return newListResult(MessageFetched, docs, len(docs)), nil
	}

	// Each descriptor's read is independent, so the fan-out runs them
	// concurrently. Blocks keep descriptor order and the first error in
	// that order wins.
	blocks := make([]ModelResult, len(descs))
	errs := make([]error, len(descs))
	var wg sync.WaitGroup
	for i := range descs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docs, err := s.fetchMany(ctx, descs[i], params, populate, filter)
			if err != nil {
				errs[i] = err
				return
			}
			blocks[i] = ModelResult{Model: descs[i].Collection, Docs: docs, DocLength: len(docs)}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	total := 0
	for _, block := range blocks {
		total += block.DocLength
	}
	return newListResult(MessageFetched, blocks, total), nil
}

func (s *Service) getOne(ctx context.Context, desc Descriptor, filter Filter, populate []Populate) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.store.FindOne(ctx, desc.Collection, filter, desc.projection(nil))
	if errors.Is(err, ErrNoDocuments) {
		return nil, apperror.NewNotFound("document not found")
	}
	if err != nil {
		return nil, apperror.NewInternal("failed to fetch document", err)
	}

	if err := s.populateDocs(ctx, desc, []Document{doc}, populate); err != nil {
		return nil, err
	}
	return newResult(MessageFetched, doc), nil
}

func (s *Service) delete(ctx context.Context, desc Descriptor, filter Filter) (*Result, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	result, err := s.store.DeleteMany(ctx, desc.Collection, filter)
	if err != nil {
		return nil, apperror.NewInternal("failed to delete documents", err)
	}

	s.notify(ctx, Change{
		Collection: desc.Collection,
		Action:     ActionDeleted,
		Filter:     filter,
		Deleted:    result.DeletedCount,
	})
	return newResult(MessageDeleted, result), nil
}

// fetchMany runs one descriptor's windowed read and resolves its relations.
func (s *Service) fetchMany(ctx context.Context, desc Descriptor, params Params, populate []Populate, filter Filter) ([]Document, error) {
	combined := mergeFilters(params.FilterTerms(), filter)
	opts := FindOptions{
		Projection: desc.projection(params.Fields()),
		Sort:       params.Sort(),
		Skip:       int64(params.Skip()),
		Limit:      int64(params.Limit()),
	}

	docs, err := s.store.Find(ctx, desc.Collection, combined, opts)
	if err != nil {
		return nil, apperror.NewInternal("failed to fetch documents", err)
	}
	if docs == nil {
		docs = []Document{}
	}

	if err := s.populateDocs(ctx, desc, docs, populate); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Service) populateDocs(ctx context.Context, desc Descriptor, docs []Document, specs []Populate) error {
	if len(docs) == 0 {
		return nil
	}
	for _, spec := range specs {
		if err := s.populateOne(ctx, desc, docs, spec, 1); err != nil {
			return err
		}
	}
	return nil
}

// populateOne resolves a single relation hop and recurses once for a nested
// spec. Paths without a relation entry and nested hops without a registered
// descriptor resolve to absent sub-documents instead of failing the read.
func (s *Service) populateOne(ctx context.Context, desc Descriptor, docs []Document, spec Populate, depth int) error {
	if depth > MaxPopulateDepth {
		return nil
	}
	rel, ok := desc.Relation(spec.Path)
	if !ok {
		s.log.Debug("populate path has no relation", "collection", desc.Collection, "path", spec.Path)
		return nil
	}

	if err := s.store.Populate(ctx, docs, rel, s.populateSpec(rel, spec)); err != nil {
		return apperror.NewInternal("failed to populate relation", err)
	}

	if spec.Populate == nil {
		return nil
	}
	related, ok := s.lookupDescriptor(rel.Collection)
	if !ok {
		s.log.Debug("nested populate needs a registered descriptor", "collection", rel.Collection, "path", spec.Populate.Path)
		return nil
	}
	subs := collectRelated(docs, spec.Path)
	if len(subs) == 0 {
		return nil
	}
	return s.populateOne(ctx, related, subs, *spec.Populate, depth+1)
}

// populateSpec builds the store-facing spec for one hop. When the related
// collection has a registered descriptor its exempt fields shape the
// projection alongside the caller's selection.
func (s *Service) populateSpec(rel Relation, spec Populate) PopulateSpec {
	if related, ok := s.lookupDescriptor(rel.Collection); ok {
		return PopulateSpec{Path: spec.Path, Projection: related.projection(spec.Select)}
	}
	projection := Projection{}
	if len(spec.Select) > 0 {
		projection.Include = spec.Select
	}
	return PopulateSpec{Path: spec.Path, Projection: projection}
}

// ensureAbsent runs one duplicate check. A matching document fails the check
// with Conflict; index tags the failing position in batch creates.
func (s *Service) ensureAbsent(ctx context.Context, desc Descriptor, check Filter, index int) error {
	if len(check) == 0 {
		return nil
	}
	_, err := s.store.FindOne(ctx, desc.Collection, check, Projection{})
	if errors.Is(err, ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return apperror.NewInternal("duplicate check failed", err)
	}
	conflict := apperror.NewConflict("document already exists")
	if index >= 0 {
		conflict = conflict.WithDetails(map[string]interface{}{"index": index})
	}
	return conflict
}

func (s *Service) validatePayload(ctx context.Context, desc Descriptor, payload Document) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.ValidatePayload(ctx, desc, payload)
}

// validatePartial schema-checks operator-free update expressions. Update
// expressions using store operator syntax are opaque to payload validation
// and pass through unchecked.
func (s *Service) validatePartial(ctx context.Context, desc Descriptor, update Update) error {
	if s.validator == nil {
		return nil
	}
	for key := range update {
		if strings.HasPrefix(key, "$") {
			return nil
		}
	}
	return s.validator.ValidatePartial(ctx, desc, Document(update))
}

func (s *Service) lookupDescriptor(collection string) (Descriptor, bool) {
	if s.registry == nil {
		return Descriptor{}, false
	}
	return s.registry.Lookup(collection)
}

func (s *Service) notify(ctx context.Context, change Change) {
	if s.events == nil {
		return
	}
	if err := s.events.EntityChanged(ctx, change); err != nil {
		s.log.Warn("entity change event not published",
			"collection", change.Collection,
			"action", string(change.Action),
			"error", err)
	}
}
