// Package app wires the storefront engines to one backend client and one
// session store. It is built once per process and passed explicitly.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/checkout"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/client/state"
	"github.com/atinyakov/GophShop/internal/client/storage"
	"github.com/atinyakov/GophShop/internal/config"
)

// App holds the engines of one storefront client.
type App struct {
	API      *api.Client
	Storage  *storage.LocalStorage
	Catalog  *catalog.Engine
	Session  *session.Engine
	Cart     *cart.Engine
	Checkout *checkout.Orchestrator
	Log      *zap.Logger
}

// Deps are the collaborators supplied by the presentation layer.
type Deps struct {
	Notifier  state.Notifier
	Navigator checkout.Navigator
	Gateway   checkout.Gateway
	Logger    *zap.Logger
	// APIOptions are appended after the options derived from config.
	APIOptions []api.Option
}

// New loads the persisted session and builds every engine.
func New(opts *config.ClientOptions, deps Deps) (*App, error) {
	if deps.Navigator == nil {
		return nil, errors.New("app: navigator is required")
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	notify := deps.Notifier
	if notify == nil {
		notify = state.LogNotifier{Log: log}
	}
	gateway := deps.Gateway
	if gateway == nil {
		gateway = checkout.KeyGateway{}
	}

	st := storage.NewLocalStorage(opts.TokenFile)
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	hc, err := api.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		return nil, err
	}
	apiOpts := []api.Option{api.WithHTTPClient(hc)}
	if opts.AllowInsecure {
		apiOpts = append(apiOpts, api.WithInsecureToken())
	}
	apiOpts = append(apiOpts, deps.APIOptions...)
	client := api.New(opts.ServerURL, st, apiOpts...)

	cartEngine := cart.New(client, notify, log.Named("cart"))

	return &App{
		API:     client,
		Storage: st,
		Catalog: catalog.New(client, notify, log.Named("catalog")),
		Session: session.New(client, st, cartEngine, notify, log.Named("session")),
		Cart:    cartEngine,
		Checkout: checkout.New(checkout.Config{
			API:        client,
			Cart:       cartEngine,
			Gateway:    gateway,
			Navigator:  deps.Navigator,
			PaymentKey: opts.PaymentKey,
			Notifier:   notify,
			Logger:     log.Named("checkout"),
		}),
		Log: log,
	}, nil
}

// Start restores the session and loads the first catalog page.
func (a *App) Start(ctx context.Context) {
	if err := a.Session.FetchUser(ctx); err != nil {
		a.Log.Info("starting anonymous", zap.Error(err))
	}
	a.Catalog.FetchProducts(ctx)
}
