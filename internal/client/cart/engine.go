// Package cart keeps a local copy of the server-side cart. Every mutation is a
// round trip followed by a full re-fetch, so the local copy only ever holds
// what the backend confirmed.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/state"
	"github.com/atinyakov/GophShop/internal/models"
)

// ErrValidation is wrapped by rejected inputs. Nothing is sent for them.
var ErrValidation = errors.New("cart: invalid input")

const fetchKey = "cart"

// Snapshot is the published cart state.
type Snapshot struct {
	Lines   []models.CartLine
	Loading bool
}

// Subtotal is the sum of price times quantity over all lines.
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// TotalItems is the sum of line quantities.
func (s Snapshot) TotalItems() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// API is the part of the backend client the engine uses.
type API interface {
	GetCart(ctx context.Context) (*api.CartResult, error)
	AddToCart(ctx context.Context, productID string, quantity int) (*api.Message, error)
	UpdateCartLine(ctx context.Context, lineID string, quantity int) (*api.Message, error)
	RemoveCartLine(ctx context.Context, lineID string) (*api.Message, error)
}

// Engine is the cart synchronization engine.
type Engine struct {
	api    API
	notify state.Notifier
	log    *zap.Logger
	store  *state.Store[Snapshot]
	group  singleflight.Group

	// gen is bumped by Reset; fetches started under an older gen are dropped.
	mu  sync.Mutex
	gen uint64
}

// New returns an engine holding an empty cart.
func New(client API, notify state.Notifier, log *zap.Logger) *Engine {
	return &Engine{
		api:    client,
		notify: notify,
		log:    log,
		store:  state.NewStore(Snapshot{}),
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

type fetchResult struct {
	gen   uint64
	lines []models.CartLine
}

// FetchCart replaces the local cart with the server's. Concurrent calls share
// one request.
func (e *Engine) FetchCart(ctx context.Context) error {
	e.store.Update(func(s Snapshot) Snapshot {
		s.Loading = true
		return s
	})

	v, err, shared := e.group.Do(fetchKey, func() (any, error) {
		e.mu.Lock()
		gen := e.gen
		e.mu.Unlock()

		res, err := e.api.GetCart(ctx)
		if err != nil {
			return nil, err
		}
		return fetchResult{gen: gen, lines: res.Cart}, nil
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.log.Warn("failed to fetch cart", zap.Error(err), zap.Bool("shared", shared))
		e.store.Update(func(s Snapshot) Snapshot {
			s.Loading = false
			return s
		})
		return fmt.Errorf("fetch cart: %w", err)
	}

	res := v.(fetchResult)
	if res.gen != e.gen {
		e.log.Debug("dropping cart fetched before reset", zap.Uint64("gen", res.gen), zap.Uint64("current", e.gen))
		return nil
	}

	e.store.Update(func(s Snapshot) Snapshot {
		s.Lines = res.lines
		s.Loading = false
		return s
	})
	return nil
}

// Reset empties the local cart. Fetches already in flight are discarded.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.group.Forget(fetchKey)
	e.store.Update(func(Snapshot) Snapshot {
		return Snapshot{}
	})
}

// AddToCart adds quantity units of a product. A zero quantity means one.
func (e *Engine) AddToCart(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return fmt.Errorf("%w: empty product id", ErrValidation)
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return fmt.Errorf("%w: quantity %d", ErrValidation, quantity)
	}

	msg, err := e.api.AddToCart(ctx, productID, quantity)
	return e.settle(ctx, "add to cart", msg, err, "Failed to add to cart")
}

// UpdateQuantity sets the quantity of a cart line.
func (e *Engine) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if lineID == "" {
		return fmt.Errorf("%w: empty line id", ErrValidation)
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1, got %d", ErrValidation, quantity)
	}

	msg, err := e.api.UpdateCartLine(ctx, lineID, quantity)
	return e.settle(ctx, "update cart line", msg, err, "Failed to update cart")
}

// RemoveFromCart deletes a cart line.
func (e *Engine) RemoveFromCart(ctx context.Context, lineID string) error {
	if lineID == "" {
		return fmt.Errorf("%w: empty line id", ErrValidation)
	}

	msg, err := e.api.RemoveCartLine(ctx, lineID)
	return e.settle(ctx, "remove cart line", msg, err, "Failed to remove item")
}

// settle reports a mutation outcome and re-fetches after a confirmed success.
func (e *Engine) settle(ctx context.Context, op string, msg *api.Message, err error, fallback string) error {
	if err != nil {
		e.log.Warn("cart mutation failed", zap.String("op", op), zap.Error(err))
		e.notify.Error(api.MessageOf(err, fallback))
		return err
	}

	e.notify.Success(msg.Message)
	if ferr := e.FetchCart(ctx); ferr != nil {
		e.log.Warn("cart refresh after mutation failed", zap.String("op", op), zap.Error(ferr))
	}
	return nil
}
