// Package mongodb implements the crud store contract on top of the MongoDB
// adapter. It translates generic filters, projections and sort directives
// into driver documents, maps driver results back into generic documents,
// and resolves populate hops with one batched query per relation.
package mongodb

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/crudkit/crudkit/pkg/crud"
	"github.com/crudkit/crudkit/pkg/observability/logger"
	"github.com/crudkit/crudkit/pkg/observability/tracing"
	storemongo "github.com/crudkit/crudkit/pkg/store/mongodb"
)

// Store adapts the MongoDB adapter to the crud store contract.
type Store struct {
	adapter  *storemongo.Adapter
	log      logger.Logger
	database string
}

// Cosa fa: costruisce lo store CRUD sopra un adapter MongoDB già connesso.
// Cosa NON fa: non apre connessioni e non crea indici automaticamente.
// Esempio minimo: st, err := mongodb.NewStore(adapter, log)
func NewStore(adapter *storemongo.Adapter, log logger.Logger) (*Store, error) {
	if adapter == nil {
		return nil, errors.New("mongodb adapter is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	return &Store{
		adapter:  adapter,
		log:      log,
		database: adapter.Database().Name(),
	}, nil
}

// Find returns every document matching filter within the requested window.
func (s *Store) Find(ctx context.Context, collection string, filter crud.Filter, opts crud.FindOptions) ([]crud.Document, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery, s.spanOptions(collection)...)
	defer span.End()

	findOpts := options.Find()
	if projection := projectionDoc(opts.Projection); projection != nil {
		findOpts.SetProjection(projection)
	}
	if sort := sortDoc(opts.Sort); sort != nil {
		findOpts.SetSort(sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	var raw []bson.M
	if err := s.adapter.Find(ctx, collection, filterDoc(filter), &raw, findOpts); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.RecordSuccess(span)
	return documents(raw), nil
}

// FindOne returns the first document matching filter in natural order.
func (s *Store) FindOne(ctx context.Context, collection string, filter crud.Filter, projection crud.Projection) (crud.Document, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery, s.spanOptions(collection)...)
	defer span.End()

	findOpts := options.FindOne()
	if doc := projectionDoc(projection); doc != nil {
		findOpts.SetProjection(doc)
	}

	var raw bson.M
	err := s.adapter.FindOne(ctx, collection, filterDoc(filter), &raw, findOpts)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// An absent document is an answer, not a failure. Duplicate checks
		// rely on this path on every successful create.
		tracing.RecordSuccess(span)
		return nil, crud.ErrNoDocuments
	}
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.RecordSuccess(span)
	return crud.Document(raw), nil
}

// InsertOne writes one document and returns it with the driver-assigned id.
func (s *Store) InsertOne(ctx context.Context, collection string, doc crud.Document) (crud.Document, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBInsert, s.spanOptions(collection)...)
	defer span.End()

	res, err := s.adapter.InsertOne(ctx, collection, bson.M(doc))
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.RecordSuccess(span)

	created := doc.Clone()
	created["_id"] = res.InsertedID
	return created, nil
}

// InsertMany writes the batch in order and returns the documents with their
// assigned ids. A mid-batch failure leaves the already inserted prefix in
// place; the durable guard against duplicates is the collection's unique
// indexes, not a rollback.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []crud.Document) ([]crud.Document, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBInsert, s.spanOptions(collection)...)
	defer span.End()

	payload := make([]interface{}, len(docs))
	for i, doc := range docs {
		payload[i] = bson.M(doc)
	}

	res, err := s.adapter.InsertMany(ctx, collection, payload)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	tracing.RecordSuccess(span)

	created := make([]crud.Document, len(docs))
	for i, doc := range docs {
		out := doc.Clone()
		if i < len(res.InsertedIDs) {
			out["_id"] = res.InsertedIDs[i]
		}
		created[i] = out
	}
	return created, nil
}

// UpdateMany applies update to every document matching filter. Operator-free
// expressions are lifted into $set so plain field maps patch fields instead
// of replacing documents.
func (s *Store) UpdateMany(ctx context.Context, collection string, filter crud.Filter, update crud.Update) (crud.UpdateResult, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBUpdate, s.spanOptions(collection)...)
	defer span.End()

	res, err := s.adapter.UpdateMany(ctx, collection, filterDoc(filter), updateDoc(update))
	if err != nil {
		tracing.RecordError(span, err)
		return crud.UpdateResult{}, err
	}
	tracing.RecordSuccess(span)
	return crud.UpdateResult{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount}, nil
}

// DeleteMany removes every document matching filter.
func (s *Store) DeleteMany(ctx context.Context, collection string, filter crud.Filter) (crud.DeleteResult, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBDelete, s.spanOptions(collection)...)
	defer span.End()

	res, err := s.adapter.DeleteMany(ctx, collection, filterDoc(filter))
	if err != nil {
		tracing.RecordError(span, err)
		return crud.DeleteResult{}, err
	}
	tracing.RecordSuccess(span)
	return crud.DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter crud.Filter) (int64, error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery, s.spanOptions(collection)...)
	defer span.End()

	count, err := s.adapter.CountDocuments(ctx, collection, filterDoc(filter))
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	tracing.RecordSuccess(span)
	return count, nil
}

// Populate resolves one relation hop for the given documents with a single
// $in query against the related collection, then attaches the related
// documents in place under the spec path. Unresolvable references leave
// their parent documents untouched.
func (s *Store) Populate(ctx context.Context, docs []crud.Document, relation crud.Relation, spec crud.PopulateSpec) error {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery, s.spanOptions(relation.Collection)...)
	defer span.End()

	refs := referenceValues(docs, relation.LocalField)
	if len(refs) == 0 {
		tracing.RecordSuccess(span)
		return nil
	}

	projection, strip := populateProjection(spec.Projection, relation.ForeignField)
	findOpts := options.Find()
	if projection != nil {
		findOpts.SetProjection(projection)
	}

	var raw []bson.M
	filter := bson.M{relation.ForeignField: bson.M{"$in": refs}}
	if err := s.adapter.Find(ctx, relation.Collection, filter, &raw, findOpts); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	related := make(map[interface{}]crud.Document, len(raw))
	for _, doc := range raw {
		if key, ok := refKey(doc[relation.ForeignField]); ok {
			related[key] = crud.Document(doc)
		}
	}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		key, ok := refKey(doc[relation.LocalField])
		if !ok {
			continue
		}
		if sub, found := related[key]; found {
			doc[spec.Path] = sub
		}
	}
	if strip {
		// The join field was forced into the query; honoring the caller's
		// selection means removing it again after the match.
		for _, sub := range related {
			delete(sub, relation.ForeignField)
		}
	}

	tracing.RecordSuccess(span)
	return nil
}

// EnsureDescriptorIndexes materializes the descriptor's unique keys as unique
// indexes, idempotently.
func (s *Store) EnsureDescriptorIndexes(ctx context.Context, desc crud.Descriptor) ([]string, error) {
	models := indexModels(desc)
	if len(models) == 0 {
		return nil, nil
	}
	names, err := s.adapter.EnsureIndexes(ctx, desc.Collection, models)
	if err != nil {
		return nil, err
	}
	s.log.Info("unique indexes ensured", "collection", desc.Collection, "indexes", names)
	return names, nil
}

func (s *Store) spanOptions(collection string) []tracing.DatabaseSpanOption {
	return []tracing.DatabaseSpanOption{
		tracing.WithDBSystem("mongodb"),
		tracing.WithDBName(s.database),
		tracing.WithDBCollection(collection),
	}
}

// filterDoc translates a service filter into its driver form. Hex strings
// under _id are cast to ObjectID so route ids match driver-assigned ids.
func filterDoc(filter crud.Filter) bson.M {
	if len(filter) == 0 {
		return bson.M{}
	}
	out := make(bson.M, len(filter))
	for key, value := range filter {
		out[key] = value
	}
	if raw, ok := out["_id"].(string); ok {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			out["_id"] = id
		}
	}
	return out
}

// updateDoc lifts operator-free update expressions into $set. Expressions
// already using operator syntax pass through unchanged.
func updateDoc(update crud.Update) bson.M {
	for key := range update {
		if strings.HasPrefix(key, "$") {
			return bson.M(update)
		}
	}
	return bson.M{"$set": bson.M(update)}
}

func projectionDoc(projection crud.Projection) bson.D {
	if len(projection.Include) > 0 {
		doc := make(bson.D, 0, len(projection.Include))
		for _, field := range projection.Include {
			doc = append(doc, bson.E{Key: field, Value: 1})
		}
		return doc
	}
	if len(projection.Exclude) > 0 {
		doc := make(bson.D, 0, len(projection.Exclude))
		for _, field := range projection.Exclude {
			doc = append(doc, bson.E{Key: field, Value: 0})
		}
		return doc
	}
	return nil
}

func sortDoc(sorts []crud.SortField) bson.D {
	if len(sorts) == 0 {
		return nil
	}
	doc := make(bson.D, 0, len(sorts))
	for _, sort := range sorts {
		order := 1
		if sort.Descending {
			order = -1
		}
		doc = append(doc, bson.E{Key: sort.Field, Value: order})
	}
	return doc
}

// populateProjection keeps the join field queryable regardless of the
// caller's selection. The second return reports whether the field must be
// stripped from the related documents after matching.
func populateProjection(projection crud.Projection, foreignField string) (bson.D, bool) {
	if len(projection.Include) > 0 {
		if foreignField == "_id" || containsField(projection.Include, foreignField) {
			return projectionDoc(projection), false
		}
		include := append(append([]string{}, projection.Include...), foreignField)
		return projectionDoc(crud.Projection{Include: include}), true
	}
	if containsField(projection.Exclude, foreignField) {
		var exclude []string
		for _, field := range projection.Exclude {
			if field != foreignField {
				exclude = append(exclude, field)
			}
		}
		return projectionDoc(crud.Projection{Exclude: exclude}), true
	}
	return projectionDoc(projection), false
}

// referenceValues collects the distinct reference values under field. Hex
// strings additionally query as ObjectID so references arriving in JSON
// payloads join against driver-assigned ids.
func referenceValues(docs []crud.Document, field string) []interface{} {
	seen := make(map[interface{}]struct{})
	var refs []interface{}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		value, ok := doc[field]
		if !ok || value == nil {
			continue
		}
		key, ok := refKey(value)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, value)
		if raw, isString := value.(string); isString {
			if id, err := primitive.ObjectIDFromHex(raw); err == nil {
				refs = append(refs, id)
			}
		}
	}
	return refs
}

// refKey canonicalizes a reference value for joining. ObjectIDs key by their
// hex form so both representations of one id land on the same key.
// Non-comparable values cannot join and are skipped.
func refKey(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case primitive.ObjectID:
		return v.Hex(), true
	}
	if !reflect.TypeOf(value).Comparable() {
		return nil, false
	}
	return value, true
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

func documents(raw []bson.M) []crud.Document {
	docs := make([]crud.Document, len(raw))
	for i, doc := range raw {
		docs[i] = crud.Document(doc)
	}
	return docs
}

func indexModels(desc crud.Descriptor) []mongo.IndexModel {
	models := make([]mongo.IndexModel, 0, len(desc.UniqueKeys))
	for _, key := range desc.UniqueKeys {
		keys := make(bson.D, 0, len(key.Fields))
		for _, field := range key.Fields {
			keys = append(keys, bson.E{Key: field, Value: 1})
		}
		opts := options.Index().SetUnique(true)
		if key.Name != "" {
			opts = opts.SetName(key.Name)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}
	return models
}

var (
	_ crud.Store        = (*Store)(nil)
	_ crud.IndexEnsurer = (*Store)(nil)
)
