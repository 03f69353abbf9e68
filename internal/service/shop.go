package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/models"
	"github.com/atinyakov/GophShop/internal/repository"
)

var (
	// ErrOutOfStock is returned when a cart or order asks for more units than remain.
	ErrOutOfStock = repository.ErrOutOfStock
	// ErrEmptyCart is returned when checking out without cart lines.
	ErrEmptyCart = fmt.Errorf("%w: cart is empty", ErrInvalidInput)
)

// CatalogRepository defines the product persistence operations.
type CatalogRepository interface {
	ListProducts(ctx context.Context, f repository.ProductFilter) ([]models.Product, int, error)
	LatestProducts(ctx context.Context, n int) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	RelatedProducts(ctx context.Context, category, excludeID string, n int) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) error
	SetProductImages(ctx context.Context, id string, urls []string) error
}

// CartRepository defines the cart line and address persistence operations.
type CartRepository interface {
	CartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	CartLineByID(ctx context.Context, userID, lineID string) (*models.CartLine, error)
	AddCartLine(ctx context.Context, userID, productID string, quantity int) (int, error)
	UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) error
	DeleteCartLine(ctx context.Context, userID, lineID string) error
	AddressByID(ctx context.Context, userID, id string) (*models.Address, error)
	CreateAddress(ctx context.Context, userID string, a models.Address) (*models.Address, error)
}

// OrderRepository places orders atomically.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o models.Order) error
}

// ShopConfig tunes the shop service.
type ShopConfig struct {
	// PageSize is the number of products per catalog page.
	PageSize int
	// LatestCount is the number of newest products flagged as new arrivals.
	LatestCount int
	// RelatedCount caps the related products shown with a product.
	RelatedCount int
	// UploadDir receives uploaded images, served under UploadURL.
	UploadDir string
	UploadURL string
	// PaymentURL is the hosted payment page. Empty disables online payment.
	PaymentURL string
}

// DefaultShopConfig returns the sandbox defaults.
func DefaultShopConfig() ShopConfig {
	return ShopConfig{
		PageSize:     8,
		LatestCount:  4,
		RelatedCount: 4,
		UploadDir:    "uploads",
		UploadURL:    "/uploads",
	}
}

// ShopService implements the catalog, cart, address and order operations.
type ShopService struct {
	catalog CatalogRepository
	carts   CartRepository
	orders  OrderRepository
	cfg     ShopConfig
	log     *zap.Logger
}

// NewShopService wires a ShopService.
func NewShopService(catalog CatalogRepository, carts CartRepository, orders OrderRepository, cfg ShopConfig, log *zap.Logger) *ShopService {
	return &ShopService{catalog: catalog, carts: carts, orders: orders, cfg: cfg, log: log}
}

// ProductQuery is a catalog listing request.
type ProductQuery struct {
	Search   string
	Category string
	Sort     string
	Page     int
}

// ProductPage is one page of the catalog plus the navigation data shown with it.
type ProductPage struct {
	Products    []models.Product `json:"products"`
	NewProducts []models.Product `json:"newProduct"`
	Categories  []string         `json:"categories"`
	TotalPages  int              `json:"totalPages"`
}

// ListProducts returns the requested catalog page. Pages start at 1 and
// there is always at least one page.
func (s *ShopService) ListProducts(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	switch q.Sort {
	case "", "asc", "desc":
	default:
		return nil, fmt.Errorf("%w: sortByPrice must be asc or desc", ErrInvalidInput)
	}
	if q.Page < 1 {
		q.Page = 1
	}

	products, total, err := s.catalog.ListProducts(ctx, repository.ProductFilter{
		Search:   strings.TrimSpace(q.Search),
		Category: q.Category,
		Sort:     q.Sort,
		Limit:    s.cfg.PageSize,
		Offset:   (q.Page - 1) * s.cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}
	latest, err := s.catalog.LatestProducts(ctx, s.cfg.LatestCount)
	if err != nil {
		return nil, err
	}
	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(latest))
	for i := range latest {
		latest[i].Latest = true
		fresh[latest[i].ID] = true
	}
	for i := range products {
		products[i].Latest = fresh[products[i].ID]
	}

	pages := (total + s.cfg.PageSize - 1) / s.cfg.PageSize
	return &ProductPage{
		Products:    products,
		NewProducts: latest,
		Categories:  categories,
		TotalPages:  max(pages, 1),
	}, nil
}

// Product returns a product and others from the same category.
func (s *ShopService) Product(ctx context.Context, id string) (*models.Product, []models.Product, error) {
	p, err := s.catalog.ProductByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	related, err := s.catalog.RelatedProducts(ctx, p.Category, p.ID, s.cfg.RelatedCount)
	if err != nil {
		return nil, nil, err
	}
	return p, related, nil
}

// UpdateProduct validates and stores the editable product fields.
func (s *ShopService) UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) error {
	u.Title = strings.TrimSpace(u.Title)
	u.Category = strings.TrimSpace(u.Category)
	switch {
	case u.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case u.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidInput)
	case u.Price.IsNegative():
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	case u.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidInput)
	}
	return s.catalog.UpdateProduct(ctx, id, u)
}

// Upload is one uploaded image.
type Upload struct {
	Name string
	Body io.Reader
}

// UploadImages stores the files and makes them the product's images,
// replacing the previous set.
func (s *ShopService) UploadImages(ctx context.Context, id string, files []Upload) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no images uploaded", ErrInvalidInput)
	}
	if _, err := s.catalog.ProductByID(ctx, id); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(f.Name))
		if err := saveUpload(filepath.Join(s.cfg.UploadDir, name), f.Body); err != nil {
			return err
		}
		urls = append(urls, path.Join(s.cfg.UploadURL, name))
	}

	if err := s.catalog.SetProductImages(ctx, id, urls); err != nil {
		return err
	}
	s.log.Info("product images replaced", zap.String("product", id), zap.Int("count", len(urls)))
	return nil
}

func saveUpload(dst string, body io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return out.Close()
}

// CartView is a user's cart with its totals.
type CartView struct {
	Cart            []models.CartLine `json:"cart"`
	SubTotal        decimal.Decimal   `json:"subTotal"`
	SumOfQuantities int               `json:"sumofQuantities"`
}

// Cart returns the user's cart.
func (s *ShopService) Cart(ctx context.Context, userID string) (*CartView, error) {
	lines, err := s.carts.CartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &CartView{Cart: lines, SubTotal: decimal.Zero}
	for _, l := range lines {
		view.SubTotal = view.SubTotal.Add(l.LineTotal())
		view.SumOfQuantities += l.Quantity
	}
	return view, nil
}

// AddToCart adds quantity units of a product to the user's cart.
func (s *ShopService) AddToCart(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	p, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return err
	}
	lines, err := s.carts.CartLines(ctx, userID)
	if err != nil {
		return err
	}
	inCart := 0
	for _, l := range lines {
		if l.Product.ID == productID {
			inCart = l.Quantity
		}
	}
	if inCart+quantity > p.Stock {
		return ErrOutOfStock
	}
	_, err = s.carts.AddCartLine(ctx, userID, productID, quantity)
	return err
}

// UpdateCartLine sets the quantity of one of the user's lines.
func (s *ShopService) UpdateCartLine(ctx context.Context, userID, lineID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	line, err := s.carts.CartLineByID(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if quantity > line.Product.Stock {
		return ErrOutOfStock
	}
	return s.carts.UpdateCartLine(ctx, userID, lineID, quantity)
}

// RemoveCartLine deletes one of the user's lines.
func (s *ShopService) RemoveCartLine(ctx context.Context, userID, lineID string) error {
	return s.carts.DeleteCartLine(ctx, userID, lineID)
}

// Address returns one of the user's saved addresses.
func (s *ShopService) Address(ctx context.Context, userID, id string) (*models.Address, error) {
	return s.carts.AddressByID(ctx, userID, id)
}

// CreateAddress saves a delivery address for the user.
func (s *ShopService) CreateAddress(ctx context.Context, userID, address, phone string) (*models.Address, error) {
	a := models.Address{Address: strings.TrimSpace(address), Phone: strings.TrimSpace(phone)}
	if a.Address == "" || a.Phone == "" {
		return nil, fmt.Errorf("%w: address and phone are required", ErrInvalidInput)
	}
	return s.carts.CreateAddress(ctx, userID, a)
}

// OrderRequest carries the checkout form.
type OrderRequest struct {
	Method  string `json:"method"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (s *ShopService) checkout(ctx context.Context, userID string, req OrderRequest, method string) (*models.Order, error) {
	if strings.ToLower(req.Method) != method {
		return nil, fmt.Errorf("%w: method must be %s", ErrInvalidInput, method)
	}
	if strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, fmt.Errorf("%w: address and phone are required", ErrInvalidInput)
	}
	view, err := s.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(view.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	o := &models.Order{
		ID:      uuid.NewString(),
		UserID:  userID,
		Method:  method,
		Address: strings.TrimSpace(req.Address),
		Phone:   strings.TrimSpace(req.Phone),
		Items:   make([]models.OrderItem, 0, len(view.Cart)),
		Total:   view.SubTotal,
	}
	for _, l := range view.Cart {
		if l.Quantity > l.Product.Stock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, l.Product.Title)
		}
		o.Items = append(o.Items, models.OrderItem{
			ProductID: l.Product.ID,
			Title:     l.Product.Title,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		})
	}
	return o, nil
}

// PlaceOrderCOD turns the user's cart into a cash-on-delivery order.
func (s *ShopService) PlaceOrderCOD(ctx context.Context, userID string, req OrderRequest) (*models.Order, error) {
	o, err := s.checkout(ctx, userID, req, models.MethodCOD)
	if err != nil {
		return nil, err
	}
	if err := s.orders.CreateOrder(ctx, *o); err != nil {
		return nil, err
	}
	s.log.Info("order placed",
		zap.String("order", o.ID),
		zap.String("user", userID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return o, nil
}

// CreatePaymentSession returns the hosted payment page URL for the user's
// cart. The URL is empty when no payment page is configured.
func (s *ShopService) CreatePaymentSession(ctx context.Context, userID string, req OrderRequest) (string, error) {
	o, err := s.checkout(ctx, userID, req, models.MethodOnline)
	if err != nil {
		return "", err
	}
	if s.cfg.PaymentURL == "" {
		s.log.Warn("online payment requested but no payment URL is configured", zap.String("user", userID))
		return "", nil
	}

	u, err := url.Parse(s.cfg.PaymentURL)
	if err != nil {
		return "", fmt.Errorf("payment url: %w", err)
	}
	q := u.Query()
	q.Set("session", uuid.NewString())
	u.RawQuery = q.Encode()

	s.log.Info("payment session created",
		zap.String("user", userID),
		zap.String("total", o.Total.StringFixed(2)),
	)
	return u.String(), nil
}
