// Package catalog implements the catalog query engine: it owns the listing
// filters, re-fetches whenever one changes and publishes the result of the
// most recently issued request only.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/state"
	"github.com/atinyakov/GophShop/internal/models"
)

// Field names a catalog query parameter.
type Field string

const (
	FieldSearch   Field = "search"
	FieldCategory Field = "category"
	FieldSort     Field = "sort"
	FieldPage     Field = "page"
)

// Price orderings. SortNone leaves the backend's default order.
const (
	SortNone = ""
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ErrValidation is wrapped by every rejected query change.
var ErrValidation = errors.New("invalid catalog query")

// Query is the current listing filter. Empty Search and Category mean no filter.
type Query struct {
	Search   string
	Category string
	Sort     string
	Page     int
}

// Snapshot is the published catalog state.
type Snapshot struct {
	Query       Query
	Products    []models.Product
	NewArrivals []models.Product
	Categories  []string
	TotalPages  int
	// Loading is true while the fetch for Query is in flight.
	Loading bool

	Current        *models.Product
	Related        []models.Product
	ProductLoading bool
	// Saving is true during an admin update or image upload.
	Saving bool
}

// API is the part of the backend client the engine uses.
type API interface {
	ListProducts(ctx context.Context, q api.ProductQuery) (*api.ProductList, error)
	GetProduct(ctx context.Context, id string) (*api.ProductDetail, error)
	UpdateProduct(ctx context.Context, id string, fields models.ProductUpdate) (*api.Message, error)
	UploadProductImages(ctx context.Context, id string, files []api.File) (*api.Message, error)
}

// Engine is the catalog query engine.
//
// Every fetch is tagged with a sequence number when it is issued; a response
// is published only if no newer fetch of the same kind was issued since.
// mu is held while publishing. Subscribers may call Snapshot and Query but
// must not call the methods that change the query or fetch.
type Engine struct {
	api    API
	notify state.Notifier
	log    *zap.Logger
	store  *state.Store[Snapshot]

	mu         sync.Mutex
	query      Query
	listSeq    uint64
	productSeq uint64

	wg sync.WaitGroup
}

// New returns an engine with an unfiltered first-page query. Nothing is
// fetched until FetchProducts or a query change.
func New(client API, notify state.Notifier, log *zap.Logger) *Engine {
	q := Query{Page: 1}
	return &Engine{
		api:    client,
		notify: notify,
		log:    log,
		query:  q,
		store:  state.NewStore(Snapshot{Query: q, TotalPages: 1}),
	}
}

// Snapshot returns the current published state.
func (e *Engine) Snapshot() Snapshot {
	return e.store.Load()
}

// Subscribe registers fn for every published snapshot.
func (e *Engine) Subscribe(fn func(Snapshot)) (cancel func()) {
	return e.store.Subscribe(fn)
}

// Query returns the current query. It reads the published snapshot, so it
// is safe to call from a subscriber.
func (e *Engine) Query() Query {
	return e.store.Load().Query
}

// SetQueryField changes one query parameter and schedules a fetch for the
// new query. Setting a field to its current value does nothing.
func (e *Engine) SetQueryField(ctx context.Context, field Field, value string) error {
	return e.update(ctx, func(q *Query) error {
		switch field {
		case FieldSearch:
			q.Search = value
		case FieldCategory:
			q.Category = value
		case FieldSort:
			q.Sort = value
		case FieldPage:
			page, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%w: page must be an integer >= 1, got %q", ErrValidation, value)
			}
			q.Page = page
		default:
			return fmt.Errorf("%w: unknown field %q", ErrValidation, field)
		}
		return nil
	})
}

// SetQuery replaces the whole query and schedules one fetch if it changed.
func (e *Engine) SetQuery(ctx context.Context, q Query) error {
	return e.update(ctx, func(cur *Query) error {
		*cur = q
		return nil
	})
}

func (e *Engine) update(ctx context.Context, fn func(*Query) error) error {
	e.mu.Lock()
	q := e.query
	if err := fn(&q); err != nil {
		e.mu.Unlock()
		return err
	}
	if err := q.validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	if q == e.query {
		e.mu.Unlock()
		return nil
	}
	e.query = q
	seq := e.beginListLocked()
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.runList(ctx, seq, q)
	}()
	return nil
}

func (q Query) validate() error {
	if q.Sort != SortNone && q.Sort != SortAsc && q.Sort != SortDesc {
		return fmt.Errorf("%w: sort must be %q, %q or empty, got %q", ErrValidation, SortAsc, SortDesc, q.Sort)
	}
	if q.Page < 1 {
		return fmt.Errorf("%w: page must be an integer >= 1, got %d", ErrValidation, q.Page)
	}
	return nil
}

// SetSearch sets the free-text filter.
func (e *Engine) SetSearch(ctx context.Context, search string) error {
	return e.SetQueryField(ctx, FieldSearch, search)
}

// SetCategory sets the category filter.
func (e *Engine) SetCategory(ctx context.Context, category string) error {
	return e.SetQueryField(ctx, FieldCategory, category)
}

// SetSort sets the price ordering.
func (e *Engine) SetSort(ctx context.Context, sort string) error {
	return e.SetQueryField(ctx, FieldSort, sort)
}

// SetPage selects the listing page.
func (e *Engine) SetPage(ctx context.Context, page int) error {
	return e.SetQueryField(ctx, FieldPage, strconv.Itoa(page))
}

// Settle blocks until every fetch scheduled by a query change has settled.
func (e *Engine) Settle() {
	e.wg.Wait()
}

// FetchProducts fetches the listing for the query current at call time.
// Failures are logged and leave the previous result in place.
func (e *Engine) FetchProducts(ctx context.Context) {
	e.mu.Lock()
	q := e.query
	seq := e.beginListLocked()
	e.mu.Unlock()

	e.runList(ctx, seq, q)
}

// beginListLocked issues a new list sequence number and marks it loading.
func (e *Engine) beginListLocked() uint64 {
	e.listSeq++
	q := e.query
	e.store.Update(func(s Snapshot) Snapshot {
		s.Query = q
		s.Loading = true
		return s
	})
	return e.listSeq
}

func (e *Engine) runList(ctx context.Context, seq uint64, q Query) {
	res, err := e.api.ListProducts(ctx, api.ProductQuery{
		Search:      q.Search,
		Category:    q.Category,
		SortByPrice: q.Sort,
		Page:        q.Page,
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.listSeq {
		e.log.Debug("dropping stale catalog response",
			zap.Uint64("seq", seq), zap.Uint64("current", e.listSeq), zap.Error(err))
		return
	}

	if err != nil {
		e.log.Error("failed to fetch products", zap.Error(err), zap.Any("query", q))
		e.store.Update(func(s Snapshot) Snapshot {
			s.Loading = false
			return s
		})
		return
	}

	e.store.Update(func(s Snapshot) Snapshot {
		s.Products = res.Products
		s.NewArrivals = res.NewProducts
		s.Categories = res.Categories
		s.TotalPages = res.TotalPages
		s.Loading = false
		return s
	})
}

// FetchProduct loads a single product and its related products. It uses its
// own loading flag and sequence so it never interferes with the listing.
func (e *Engine) FetchProduct(ctx context.Context, id string) {
	e.mu.Lock()
	e.productSeq++
	seq := e.productSeq
	e.store.Update(func(s Snapshot) Snapshot {
		s.ProductLoading = true
		return s
	})
	e.mu.Unlock()

	res, err := e.api.GetProduct(ctx, id)

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.productSeq {
		e.log.Debug("dropping stale product response", zap.String("id", id), zap.Uint64("seq", seq))
		return
	}

	if err != nil {
		e.log.Error("failed to fetch product", zap.String("id", id), zap.Error(err))
		e.store.Update(func(s Snapshot) Snapshot {
			s.ProductLoading = false
			return s
		})
		return
	}

	product := res.Product
	e.store.Update(func(s Snapshot) Snapshot {
		s.Current = &product
		s.Related = res.Related
		s.ProductLoading = false
		return s
	})
}

func (e *Engine) setSaving(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Update(func(s Snapshot) Snapshot {
		s.Saving = v
		return s
	})
}

// UpdateProduct saves admin edits and re-fetches the canonical record.
func (e *Engine) UpdateProduct(ctx context.Context, id string, fields models.ProductUpdate) error {
	e.setSaving(true)
	defer e.setSaving(false)

	msg, err := e.api.UpdateProduct(ctx, id, fields)
	if err != nil {
		e.log.Error("failed to update product", zap.String("id", id), zap.Error(err))
		e.notify.Error(api.MessageOf(err, "Update failed"))
		return err
	}

	e.notify.Success(msg.Message)
	e.FetchProduct(ctx, id)
	return nil
}

// UploadImages replaces a product's images and re-fetches the product.
func (e *Engine) UploadImages(ctx context.Context, id string, files []api.File) error {
	if len(files) == 0 {
		e.notify.Error("Please select new images")
		return fmt.Errorf("%w: no images selected", ErrValidation)
	}

	e.setSaving(true)
	defer e.setSaving(false)

	msg, err := e.api.UploadProductImages(ctx, id, files)
	if err != nil {
		e.log.Error("failed to upload product images", zap.String("id", id), zap.Error(err))
		e.notify.Error(api.MessageOf(err, "Image update failed"))
		return err
	}

	e.notify.Success(msg.Message)
	e.FetchProduct(ctx, id)
	return nil
}
