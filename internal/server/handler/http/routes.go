package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
)

// NewRouter constructs the sandbox storefront API.
//
// Routes:
//
//	POST   /api/user/login        → authHandler.Login
//	POST   /api/user/verify       → authHandler.Verify
//	GET    /api/user/me           → authHandler.Me             (token)
//	GET    /api/product/all       → shopHandler.ListProducts
//	GET    /api/product/{id}      → shopHandler.GetProduct
//	PUT    /api/product/{id}      → shopHandler.UpdateProduct  (admin)
//	POST   /api/product/{id}      → shopHandler.UploadImages   (admin)
//	GET    /api/cart/all          → shopHandler.Cart           (token)
//	POST   /api/cart/new          → shopHandler.AddToCart      (token)
//	PUT    /api/cart/{id}         → shopHandler.UpdateCartLine (token)
//	DELETE /api/cart/{id}         → shopHandler.RemoveCartLine (token)
//	GET    /api/address/{id}      → shopHandler.GetAddress     (token)
//	POST   /api/address/new       → shopHandler.CreateAddress  (token)
//	POST   /api/order/new/cod     → shopHandler.OrderCOD       (token)
//	POST   /api/order/new/online  → shopHandler.OrderOnline    (token)
//	GET    /uploads/*             → files from uploadDir
func NewRouter(
	authHandler *AuthHandler,
	shopHandler *ShopHandler,
	tokens middleware.TokenParser,
	uploadDir string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Bodies must be JSON, except image uploads
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/login", authHandler.Login)
		r.Post("/user/verify", authHandler.Verify)
		r.Get("/product/all", shopHandler.ListProducts)
		r.Get("/product/{id}", shopHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(middleware.TokenAuth(tokens))

			r.Get("/user/me", authHandler.Me)

			r.Get("/cart/all", shopHandler.Cart)
			r.Post("/cart/new", shopHandler.AddToCart)
			r.Put("/cart/{id}", shopHandler.UpdateCartLine)
			r.Delete("/cart/{id}", shopHandler.RemoveCartLine)

			r.Get("/address/{id}", shopHandler.GetAddress)
			r.Post("/address/new", shopHandler.CreateAddress)

			r.Post("/order/new/cod", shopHandler.OrderCOD)
			r.Post("/order/new/online", shopHandler.OrderOnline)

			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Put("/product/{id}", shopHandler.UpdateProduct)
				r.Post("/product/{id}", shopHandler.UploadImages)
			})
		})
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	return r
}
