package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/middleware"
	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/service"
)

// ShopService defines the catalog, cart, address and order operations
// required by the ShopHandler.
type ShopService interface {
	ListProducts(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error)
	Product(ctx context.Context, id string) (*models.Product, []models.Product, error)
	UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) error
	UploadImages(ctx context.Context, id string, files []service.Upload) error
	Cart(ctx context.Context, userID string) (*service.CartView, error)
	AddToCart(ctx context.Context, userID, productID string, quantity int) error
	UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) error
	RemoveCartLine(ctx context.Context, userID, lineID string) error
	Address(ctx context.Context, userID, id string) (*models.Address, error)
	CreateAddress(ctx context.Context, userID, address, phone string) (*models.Address, error)
	PlaceOrderCOD(ctx context.Context, userID string, req service.OrderRequest) (*models.Order, error)
	CreatePaymentSession(ctx context.Context, userID string, req service.OrderRequest) (string, error)
}

// DefaultMaxUpload caps the size of an image upload request.
const DefaultMaxUpload = 32 << 20

// ShopHandler serves the storefront endpoints.
type ShopHandler struct {
	Shop ShopService
	Log  *zap.Logger
	// MaxUpload caps multipart request bodies; DefaultMaxUpload when zero.
	MaxUpload int64
}

// ListProducts handles GET /api/product/all?search=&category=&sortByPrice=&page=.
func (h *ShopHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	res, err := h.Shop.ListProducts(r.Context(), service.ProductQuery{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Sort:     q.Get("sortByPrice"),
		Page:     page,
	})
	if err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetProduct handles GET /api/product/{id}.
func (h *ShopHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, related, err := h.Shop.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p, "relatedProduct": related})
}

// UpdateProduct handles PUT /api/product/{id} for admins.
func (h *ShopHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var u models.ProductUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	if err := h.Shop.UpdateProduct(r.Context(), chi.URLParam(r, "id"), u); err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeMessage(w, http.StatusOK, "Product updated")
}

// UploadImages handles POST /api/product/{id} for admins. The multipart
// field "files" carries the new images.
func (h *ShopHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUpload
	if limit <= 0 {
		limit = DefaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid upload")
			return
		}
		defer f.Close()
		uploads = append(uploads, service.Upload{Name: fh.Filename, Body: f})
	}

	if err := h.Shop.UploadImages(r.Context(), chi.URLParam(r, "id"), uploads); err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeMessage(w, http.StatusOK, "Images updated")
}

// Cart handles GET /api/cart/all.
func (h *ShopHandler) Cart(w http.ResponseWriter, r *http.Request) {
	view, err := h.Shop.Cart(r.Context(), middleware.GetUserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, h.Log, err, "Cart not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AddToCart handles POST /api/cart/new with {"product","quantity"}.
func (h *ShopHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	if err := h.Shop.AddToCart(r.Context(), userID, req.Product, req.Quantity); err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeMessage(w, http.StatusOK, "Added to cart")
}

// UpdateCartLine handles PUT /api/cart/{id} with {"quantity"}.
func (h *ShopHandler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	if err := h.Shop.UpdateCartLine(r.Context(), userID, chi.URLParam(r, "id"), req.Quantity); err != nil {
		writeError(w, h.Log, err, "Cart item not found")
		return
	}
	writeMessage(w, http.StatusOK, "Cart updated")
}

// RemoveCartLine handles DELETE /api/cart/{id}.
func (h *ShopHandler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if err := h.Shop.RemoveCartLine(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.Log, err, "Cart item not found")
		return
	}
	writeMessage(w, http.StatusOK, "Removed from cart")
}

// GetAddress handles GET /api/address/{id}.
func (h *ShopHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	a, err := h.Shop.Address(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err, "Address not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateAddress handles POST /api/address/new with {"address","phone"}.
func (h *ShopHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var req models.Address
	if !decodeBody(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	a, err := h.Shop.CreateAddress(r.Context(), userID, req.Address, req.Phone)
	if err != nil {
		writeError(w, h.Log, err, "Address not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Address saved", "address": a})
}

// OrderCOD handles POST /api/order/new/cod.
func (h *ShopHandler) OrderCOD(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	if _, err := h.Shop.PlaceOrderCOD(r.Context(), userID, req); err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeMessage(w, http.StatusCreated, "Order placed successfully")
}

// OrderOnline handles POST /api/order/new/online and answers with the
// hosted payment page URL, empty when none is configured.
func (h *ShopHandler) OrderOnline(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := middleware.GetUserIDFromContext(r.Context())
	u, err := h.Shop.CreatePaymentSession(r.Context(), userID, req)
	if err != nil {
		writeError(w, h.Log, err, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}
