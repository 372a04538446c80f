package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

// Config is the registration-time configuration. Pagination, when set, is
// the default page applied to calls that omit an explicit page parameter.
// The Fetcher copies it at construction and never mutates it afterwards.
type Config struct {
	Pagination *params.Page
}

// Options adjusts a single Fetch call.
type Options struct {
	// Single forces single-record mode on or off. When nil, single mode
	// is inferred: a single-value eq filter on the model's ID attribute
	// requests one record.
	Single *bool
	// Transform is applied to each materialized document before it is
	// returned. Nil means identity.
	Transform func(schema.Document) schema.Document
	// Refine is the trailing raw refinement, applied after every compiled
	// stage and immediately before execution.
	Refine Refiner
}

// Result is the outcome of a Fetch. Collection mode fills Data and, when a
// limit was in effect, Pagination. Single mode fills Single with the first
// matching document, or leaves it nil for the defined no-match outcome —
// a missing record is not an error.
type Result struct {
	Data       []schema.Document
	Single     schema.Document
	Pagination *PaginationResult
}

// PaginationResult annotates a collection result with page-count metadata.
// PageCount covers all rows matching the query's predicates, independent of
// the current offset.
type PaginationResult struct {
	Limit     int `json:"limit"`
	Offset    int `json:"offset"`
	PageCount int `json:"pageCount"`
}

// Fetcher compiles parameter sets and drives them through a store-supplied
// builder with strictly ordered, non-skippable stages: includes, filters,
// grouping, sorting, field projection, pagination, raw refinement,
// execution. Joins from includes and filters must exist before sort keys or
// projections can reference them, and pagination comes last so page counts
// reflect every other constraint. Compilation is pure and synchronous; the
// only suspension point is the store execution at the end.
type Fetcher struct {
	defaults      *params.Page
	logger        *zap.Logger
	bus           *events.TypedEventBus[QueryEvent]
	subMu         sync.Mutex
	subscriptions map[string]func()
}

// NewFetcher creates a Fetcher from registration-time configuration. The
// default pagination, when present, must carry a limit of at least 1 and a
// non-negative offset.
func NewFetcher(cfg *Config, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var defaults *params.Page
	if cfg != nil && cfg.Pagination != nil {
		if cfg.Pagination.Limit < 1 {
			return nil, fmt.Errorf("default pagination limit must be at least 1, got %d", cfg.Pagination.Limit)
		}
		if cfg.Pagination.Offset < 0 {
			return nil, fmt.Errorf("default pagination offset cannot be negative, got %d", cfg.Pagination.Offset)
		}
		copied := *cfg.Pagination
		defaults = &copied
	}
	bus, err := events.NewTypedEventBus[QueryEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create query event bus: %w", err)
	}
	return &Fetcher{
		defaults:      defaults,
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]func()),
	}, nil
}

// Subscribe registers a callback for a query event type and returns a
// subscription ID usable with Unsubscribe.
func (f *Fetcher) Subscribe(eventType QueryEventType, cb EventCallback) string {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	unsubscribe := f.bus.Subscribe(string(eventType), cb)
	id := uuid.New().String()
	f.subscriptions[id] = unsubscribe
	return id
}

// Unsubscribe removes a subscription by its ID. Unknown IDs are ignored.
func (f *Fetcher) Unsubscribe(id string) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	if unsubscribe, ok := f.subscriptions[id]; ok {
		unsubscribe()
		delete(f.subscriptions, id)
	}
}

// Fetch compiles the raw parameter object and runs it against the builder.
// Malformed parameter shapes fail before the builder is touched; store
// errors propagate unmodified.
func (f *Fetcher) Fetch(ctx context.Context, b Builder, model *schema.Model, raw map[string]any, opts *Options) (*Result, error) {
	if b == nil {
		return nil, fmt.Errorf("builder cannot be nil")
	}
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if opts == nil {
		opts = &Options{}
	}

	queryID := uuid.New().String()
	startTime := time.Now()
	f.emit(newQueryEvent(QueryStart, queryID, model.Resource, raw, nil, time.Time{}))

	result, err := f.fetch(ctx, b, model, raw, opts)
	if err != nil {
		errText := err.Error()
		f.emit(newQueryEvent(QueryFailed, queryID, model.Resource, raw, &errText, startTime))
		return nil, err
	}
	f.emit(newQueryEvent(QuerySuccess, queryID, model.Resource, raw, nil, startTime))
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, b Builder, model *schema.Model, raw map[string]any, opts *Options) (*Result, error) {
	set, err := params.Parse(raw)
	if err != nil {
		return nil, err
	}
	naming := model.NamingOrDefault()

	// Includes go first so their relation loads are registered before any
	// clause can depend on them.
	includes, err := CompileInclude(set.Include)
	if err != nil {
		return nil, err
	}
	projections := CompileFields(set.Fields, naming)
	for i := range includes {
		if fields, ok := includeProjection(model, includes[i].Relations, projections); ok {
			includes[i].Projection = fields
		}
		if err := b.Include(includes[i]); err != nil {
			return nil, err
		}
	}

	clauses, err := CompileFilter(set.Filter, naming)
	if err != nil {
		return nil, err
	}
	for _, clause := range clauses {
		if !clause.Path.Local() {
			if err := b.Join(clause.Path.Relations); err != nil {
				return nil, err
			}
		}
		if err := b.Where(clause); err != nil {
			return nil, err
		}
	}

	if group := CompileGroup(set.Group, naming); len(group) > 0 {
		if err := b.GroupBy(group); err != nil {
			return nil, err
		}
	}

	for _, key := range CompileSort(set.Sort, naming) {
		if !key.Path.Local() {
			if err := b.Join(key.Path.Relations); err != nil {
				return nil, err
			}
		}
		if err := b.OrderBy(key); err != nil {
			return nil, err
		}
	}

	if fields, ok := projections[model.Resource]; ok {
		if err := b.Select(fields); err != nil {
			return nil, err
		}
	}

	single := singleMode(opts, clauses, model)

	page := CompilePage(set.Page, f.defaults)
	if page != nil && !single {
		b.Limit(page.Limit)
		b.Offset(page.Offset)
	}
	if single {
		// One record is requested; pagination and page counting are skipped.
		b.Limit(1)
	}

	if opts.Refine != nil {
		if err := opts.Refine.Refine(b); err != nil {
			return nil, err
		}
	}

	f.logger.Debug("executing compiled query",
		zap.String("resource", model.Resource),
		zap.Int("clauses", len(clauses)),
		zap.Int("includes", len(includes)),
		zap.Bool("single", single))

	rows, err := b.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Transform != nil {
		for i := range rows {
			rows[i] = opts.Transform(rows[i])
		}
	}

	if single {
		result := &Result{}
		if len(rows) > 0 {
			result.Single = rows[0]
		}
		return result, nil
	}

	result := &Result{Data: rows}
	if page != nil && page.Limit > 0 {
		total, err := b.Count(ctx)
		if err != nil {
			return nil, err
		}
		result.Pagination = &PaginationResult{
			Limit:     page.Limit,
			Offset:    page.Offset,
			PageCount: PageCount(total, page.Limit),
		}
	}
	return result, nil
}

// singleMode decides whether the call requests one record: an explicit
// option wins; otherwise a single-value eq filter on the model's ID
// attribute implies a unique lookup.
func singleMode(opts *Options, clauses []FilterClause, model *schema.Model) bool {
	if opts.Single != nil {
		return *opts.Single
	}
	if model.IDAttribute == "" {
		return false
	}
	idColumn := model.NamingOrDefault().ToColumn(model.IDAttribute)
	for _, clause := range clauses {
		if clause.Op != OperatorEq || !clause.Path.Local() || clause.Path.Attribute != idColumn {
			continue
		}
		if len(clause.Values) == 1 && !IsNull(clause.Values[0]) {
			return true
		}
	}
	return false
}

// includeProjection finds the fields projection matching the resource type
// at the end of an include's relation chain. The keys the store needs for
// stitching eager loads back onto parents are the store's concern.
func includeProjection(model *schema.Model, relations []string, projections map[string][]ProjectionField) ([]ProjectionField, bool) {
	if len(projections) == 0 {
		return nil, false
	}
	current := model
	for _, name := range relations {
		rel, ok := current.Relation(name)
		if !ok || rel.Model == nil {
			return nil, false
		}
		current = rel.Model
	}
	fields, ok := projections[current.Resource]
	return fields, ok
}

func (f *Fetcher) emit(event QueryEvent) {
	if f.bus != nil {
		f.bus.Emit(string(event.Type), event)
	}
}
