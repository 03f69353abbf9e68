// Package session drives passwordless login: email, one-time password and
// the persisted session token.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/state"
	"github.com/atinyakov/GophShop/internal/models"
)

var (
	// ErrBusy is returned when a login or verification is already running.
	ErrBusy = errors.New("session: request already in progress")
	// ErrValidation is wrapped by rejected inputs. Nothing is sent for them.
	ErrValidation = errors.New("session: invalid input")
	// ErrNoPendingEmail means VerifyUser was called before a login request.
	ErrNoPendingEmail = fmt.Errorf("%w: no email awaiting verification", ErrValidation)
	// ErrSignedIn means LoginUser was called while a session is active.
	ErrSignedIn = fmt.Errorf("%w: already signed in, log out first", ErrValidation)
	// ErrLoggedOut is returned by a request whose result arrived after a
	// logout. The result is discarded.
	ErrLoggedOut = errors.New("session: logged out while request was in flight")
)

// Status is the position in the session lifecycle.
type Status int

const (
	Anonymous Status = iota
	LoginRequested
	AwaitingVerification
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case LoginRequested:
		return "login requested"
	case AwaitingVerification:
		return "awaiting verification"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Snapshot is the published session state.
type Snapshot struct {
	Status Status
	User   *models.User
	// BtnLoading is true while a login or verification request is in flight.
	BtnLoading bool
	// Restoring is true until the first FetchUser settles.
	Restoring bool
}

// IsAdmin reports whether the signed-in user has the admin role.
func (s Snapshot) IsAdmin() bool {
	return s.User != nil && s.User.IsAdmin()
}

// API is the part of the backend client the engine uses.
type API interface {
	RequestLogin(ctx context.Context, email string) (*api.Message, error)
	VerifyOTP(ctx context.Context, email, otp string) (*api.VerifyResult, error)
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Storage persists the session token and the email awaiting verification.
type Storage interface {
	Token() (string, bool)
	SetToken(token string) error
	DeleteToken() error
	SetPendingEmail(email string) error
	PendingEmail() (string, bool)
	ClearPendingEmail() error
}

// Cart is rehydrated after sign-in and emptied on logout.
type Cart interface {
	FetchCart(ctx context.Context) error
	Reset()
}

// Engine is the session lifecycle engine.
//
// LogoutUser bumps gen. Requests remember gen when they start and commit
// their result through commit, which drops it if gen has moved on.
type Engine struct {
	api     API
	storage Storage
	cart    Cart
	notify  state.Notifier
	log     *zap.Logger
	store   *state.Store[Snapshot]

	mu   sync.Mutex
	busy bool
	gen  atomic.Uint64
}

// New returns an engine in the restoring state. Call FetchUser once at start.
func New(client API, storage Storage, cart Cart, notify state.Notifier, log *zap.Logger) *Engine {
	return &Engine{
		api:     client,
		storage: storage,
		cart:    cart,
		notify:  notify,
		log:     log,
		store:   state.NewStore(Snapshot{Status: Anonymous, Restoring: true}),
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

func (e *Engine) acquire() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return 0, ErrBusy
	}
	e.busy = true
	return e.gen.Load(), nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// commit publishes fn's result unless a logout happened after gen was taken.
// fn runs under the store lock, so storage writes made in it are ordered
// with the logout's.
func (e *Engine) commit(gen uint64, fn func(Snapshot) Snapshot) bool {
	_, ok := e.store.UpdateIf(func(s Snapshot) (Snapshot, bool) {
		if e.gen.Load() != gen {
			return s, false
		}
		return fn(s), true
	})
	return ok
}

// LoginUser asks the backend to send a one-time password to email. It is
// rejected while a session is active.
func (e *Engine) LoginUser(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email %q", ErrValidation, email)
	}
	gen, err := e.acquire()
	if err != nil {
		return err
	}
	defer e.release()

	if e.store.Load().Status == Authenticated {
		return ErrSignedIn
	}

	e.store.Update(func(s Snapshot) Snapshot {
		s.Status = LoginRequested
		s.BtnLoading = true
		return s
	})

	msg, err := e.api.RequestLogin(ctx, email)
	if err != nil {
		e.log.Warn("login request failed", zap.String("email", email), zap.Error(err))
		if !e.commit(gen, func(s Snapshot) Snapshot {
			s.Status = Anonymous
			s.User = nil
			s.BtnLoading = false
			return s
		}) {
			return ErrLoggedOut
		}
		e.notify.Error(api.MessageOf(err, "Login failed"))
		return err
	}

	if !e.commit(gen, func(s Snapshot) Snapshot {
		if err := e.storage.SetPendingEmail(email); err != nil {
			e.log.Error("failed to persist pending email", zap.Error(err))
		}
		s.Status = AwaitingVerification
		s.BtnLoading = false
		return s
	}) {
		e.log.Info("login result dropped after logout", zap.String("email", email))
		return ErrLoggedOut
	}
	e.notify.Success(msg.Message)
	return nil
}

// VerifyUser checks otp for the email held since LoginUser. On success the
// token is persisted first, then the cart is rehydrated exactly once.
func (e *Engine) VerifyUser(ctx context.Context, otp string) error {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return fmt.Errorf("%w: empty otp", ErrValidation)
	}
	email, ok := e.storage.PendingEmail()
	if !ok {
		return ErrNoPendingEmail
	}
	gen, err := e.acquire()
	if err != nil {
		return err
	}

	e.store.Update(func(s Snapshot) Snapshot {
		s.BtnLoading = true
		return s
	})

	res, err := e.api.VerifyOTP(ctx, email, otp)
	if err != nil {
		e.release()
		e.log.Warn("otp verification failed", zap.String("email", email), zap.Error(err))
		if !e.commit(gen, func(s Snapshot) Snapshot {
			s.Status = AwaitingVerification
			s.BtnLoading = false
			return s
		}) {
			return ErrLoggedOut
		}
		e.notify.Error(api.MessageOf(err, "Verification failed"))
		return err
	}

	user := res.User
	committed := e.commit(gen, func(s Snapshot) Snapshot {
		if err := e.storage.ClearPendingEmail(); err != nil {
			e.log.Error("failed to clear pending email", zap.Error(err))
		}
		if err := e.storage.SetToken(res.Token); err != nil {
			e.log.Error("failed to persist session token", zap.Error(err))
		}
		s.Status = Authenticated
		s.User = &user
		s.BtnLoading = false
		s.Restoring = false
		return s
	})
	e.release()
	if !committed {
		e.log.Info("verification result dropped after logout", zap.String("email", email))
		return ErrLoggedOut
	}
	e.notify.Success(res.Message)

	e.rehydrate(ctx)
	return nil
}

// FetchUser restores a session from the stored token. Without a token it
// settles as Anonymous and makes no request. A rejected token is kept; the
// next successful login overwrites it.
func (e *Engine) FetchUser(ctx context.Context) error {
	gen := e.gen.Load()
	anonymous := func(s Snapshot) Snapshot {
		s.Status = Anonymous
		s.User = nil
		s.Restoring = false
		return s
	}

	if _, ok := e.storage.Token(); !ok {
		e.commit(gen, anonymous)
		return nil
	}

	user, err := e.api.CurrentUser(ctx)
	if err != nil {
		e.log.Info("session restore failed", zap.Error(err))
		e.commit(gen, anonymous)
		return err
	}

	if !e.commit(gen, func(s Snapshot) Snapshot {
		s.Status = Authenticated
		s.User = user
		s.Restoring = false
		return s
	}) {
		e.log.Info("restored session dropped after logout")
		return ErrLoggedOut
	}
	e.rehydrate(ctx)
	return nil
}

// LogoutUser drops the local session and empties the cart. Requests still
// in flight finish with ErrLoggedOut and change nothing.
func (e *Engine) LogoutUser() error {
	e.gen.Add(1)

	var err error
	e.store.Update(func(s Snapshot) Snapshot {
		if err = e.storage.DeleteToken(); err != nil {
			e.log.Error("failed to delete session token", zap.Error(err))
		}
		if perr := e.storage.ClearPendingEmail(); perr != nil {
			e.log.Error("failed to clear pending email", zap.Error(perr))
		}
		s.Status = Anonymous
		s.User = nil
		s.BtnLoading = false
		s.Restoring = false
		return s
	})
	e.cart.Reset()
	e.notify.Success("Logged out")
	return err
}

func (e *Engine) rehydrate(ctx context.Context) {
	if err := e.cart.FetchCart(ctx); err != nil {
		e.log.Warn("cart rehydration failed", zap.Error(err))
	}
}
