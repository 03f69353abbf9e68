// Package checkout turns a cart, a delivery address and a payment method into
// an order, either cash on delivery or through a hosted payment page.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/state"
	"github.com/atinyakov/GophShop/internal/models"
)

var (
	ErrBusy       = errors.New("checkout: submission already in progress")
	ErrValidation = errors.New("checkout: invalid order")

	ErrEmptyCart     = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrNoAddress     = fmt.Errorf("%w: no delivery address", ErrValidation)
	ErrInvalidMethod = fmt.Errorf("%w: payment method must be %q or %q", ErrValidation, models.MethodCOD, models.MethodOnline)

	// ErrNoPaymentURL means the backend created no hosted payment session.
	ErrNoPaymentURL = errors.New("failed to create payment session")
	// ErrPaymentFailed wraps any transport or gateway error on the online path.
	ErrPaymentFailed = errors.New("payment failed, please try again")
)

// User-visible messages for the online path.
const (
	msgNoPaymentURL  = "Failed to create payment session"
	msgPaymentFailed = "Payment failed, please try again"
)

// Status is the orchestrator's position in a submission.
type Status int

const (
	Idle Status = iota
	Submitting
	// Completed means a cash-on-delivery order was placed.
	Completed
	// Redirected means control was handed to the hosted payment page.
	Redirected
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Completed:
		return "completed"
	case Redirected:
		return "redirected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Snapshot is the published checkout state.
type Snapshot struct {
	Status         Status
	Address        *models.Address
	Method         string
	Loading        bool
	AddressLoading bool
}

// API is the part of the backend client the orchestrator uses.
type API interface {
	GetAddress(ctx context.Context, id string) (*models.Address, error)
	PlaceOrderCOD(ctx context.Context, order api.OrderRequest) (*api.Message, error)
	CreateOnlinePaymentSession(ctx context.Context, order api.OrderRequest) (*api.PaymentSession, error)
}

// Cart is the cart engine as seen from checkout.
type Cart interface {
	Snapshot() cart.Snapshot
	FetchCart(ctx context.Context) error
}

// Gateway prepares the hosted payment client for a publishable key.
type Gateway interface {
	Load(ctx context.Context, publishableKey string) error
}

// Navigator moves the user out of checkout.
type Navigator interface {
	// Redirect hands control to an external payment page.
	Redirect(url string) error
	// ShowOrders opens the order confirmation view.
	ShowOrders()
}

// Orchestrator is the checkout orchestrator.
type Orchestrator struct {
	api        API
	cart       Cart
	gateway    Gateway
	nav        Navigator
	paymentKey string
	notify     state.Notifier
	log        *zap.Logger
	store      *state.Store[Snapshot]

	mu   sync.Mutex
	busy bool
}

// Config carries the orchestrator's collaborators.
type Config struct {
	API        API
	Cart       Cart
	Gateway    Gateway
	Navigator  Navigator
	PaymentKey string
	Notifier   state.Notifier
	Logger     *zap.Logger
}

// New returns an idle orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		api:        cfg.API,
		cart:       cfg.Cart,
		gateway:    cfg.Gateway,
		nav:        cfg.Navigator,
		paymentKey: cfg.PaymentKey,
		notify:     cfg.Notifier,
		log:        cfg.Logger,
		store:      state.NewStore(Snapshot{Status: Idle}),
	}
}

// Snapshot returns the current published state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.store.Load()
}

// Subscribe registers fn for every published snapshot.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (cancel func()) {
	return o.store.Subscribe(fn)
}

// LoadAddress resolves the delivery address by id.
func (o *Orchestrator) LoadAddress(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoAddress
	}

	o.store.Update(func(s Snapshot) Snapshot {
		s.AddressLoading = true
		return s
	})

	addr, err := o.api.GetAddress(ctx, id)
	if err != nil {
		o.log.Error("failed to fetch address", zap.String("id", id), zap.Error(err))
		o.store.Update(func(s Snapshot) Snapshot {
			s.AddressLoading = false
			return s
		})
		return err
	}

	o.store.Update(func(s Snapshot) Snapshot {
		s.Address = addr
		s.AddressLoading = false
		return s
	})
	return nil
}

// SetMethod selects the payment method.
func (o *Orchestrator) SetMethod(method string) error {
	method = strings.ToLower(strings.TrimSpace(method))
	if method != models.MethodCOD && method != models.MethodOnline {
		return ErrInvalidMethod
	}
	o.store.Update(func(s Snapshot) Snapshot {
		s.Method = method
		return s
	})
	return nil
}

func (o *Orchestrator) validate(s Snapshot) error {
	if len(o.cart.Snapshot().Lines) == 0 {
		return ErrEmptyCart
	}
	if s.Address == nil || strings.TrimSpace(s.Address.Address) == "" {
		return ErrNoAddress
	}
	if s.Method != models.MethodCOD && s.Method != models.MethodOnline {
		return ErrInvalidMethod
	}
	return nil
}

// Submit places the order with the selected method.
func (o *Orchestrator) Submit(ctx context.Context) error {
	snap := o.store.Load()
	if err := o.validate(snap); err != nil {
		return err
	}

	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	o.busy = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	o.store.Update(func(s Snapshot) Snapshot {
		s.Status = Submitting
		s.Loading = true
		return s
	})

	order := api.OrderRequest{
		Method:  snap.Method,
		Phone:   snap.Address.Phone,
		Address: snap.Address.Address,
	}
	if snap.Method == models.MethodCOD {
		return o.submitCOD(ctx, order)
	}
	return o.submitOnline(ctx, order)
}

func (o *Orchestrator) finish(status Status) {
	o.store.Update(func(s Snapshot) Snapshot {
		s.Status = status
		s.Loading = false
		return s
	})
}

func (o *Orchestrator) submitCOD(ctx context.Context, order api.OrderRequest) error {
	msg, err := o.api.PlaceOrderCOD(ctx, order)
	if err != nil {
		o.log.Warn("cod order failed", zap.Error(err))
		o.finish(Idle)
		o.notify.Error(api.MessageOf(err, "Order failed"))
		return err
	}

	o.notify.Success(msg.Message)
	if err := o.cart.FetchCart(ctx); err != nil {
		o.log.Warn("cart refresh after order failed", zap.Error(err))
	}
	o.finish(Completed)
	o.nav.ShowOrders()
	return nil
}

func (o *Orchestrator) submitOnline(ctx context.Context, order api.OrderRequest) error {
	fail := func(cause error) error {
		o.log.Warn("online payment failed", zap.Error(cause))
		o.finish(Failed)
		o.notify.Error(msgPaymentFailed)
		return fmt.Errorf("%w: %w", ErrPaymentFailed, cause)
	}

	if err := o.gateway.Load(ctx, o.paymentKey); err != nil {
		return fail(err)
	}

	sess, err := o.api.CreateOnlinePaymentSession(ctx, order)
	if err != nil {
		return fail(err)
	}
	if sess.URL == "" {
		o.finish(Failed)
		o.notify.Error(msgNoPaymentURL)
		return ErrNoPaymentURL
	}

	if err := o.nav.Redirect(sess.URL); err != nil {
		return fail(err)
	}
	o.finish(Redirected)
	return nil
}

// Reset returns a finished checkout to Idle, keeping address and method.
func (o *Orchestrator) Reset() {
	o.store.Update(func(s Snapshot) Snapshot {
		if !s.Loading {
			s.Status = Idle
		}
		return s
	})
}

// KeyGateway accepts any non-empty publishable key. It stands in for a
// hosted payment library that needs no client-side setup beyond the key.
type KeyGateway struct{}

func (KeyGateway) Load(_ context.Context, key string) error {
	if key == "" {
		return errors.New("payment gateway: missing publishable key")
	}
	return nil
}
