// Package api is the storefront's RemoteAPIClient: stateless HTTP calls to
// the REST backend returning decoded JSON or a typed failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atinyakov/GophShop/internal/models"
)

// TokenHeader carries the session token on authenticated requests.
const TokenHeader = "token"

// ErrNoToken is returned by authenticated calls when no session token is stored.
var ErrNoToken = errors.New("not logged in")

// ErrInsecureTransport is returned when an authenticated call would send the
// session token over a non-https connection.
var ErrInsecureTransport = errors.New("refusing to send session token over insecure transport")

// Error is a non-2xx backend response.
type Error struct {
	StatusCode int
	// Message is the backend's "message" field, if it sent one.
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Message)
}

// MessageOf returns the backend message carried by err, or fallback when
// err is not a backend error or the backend sent no message.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// IsUnauthorized reports whether the backend rejected the session token.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return errors.Is(err, ErrNoToken)
}

// TokenSource yields the current session token.
type TokenSource interface {
	Token() (string, bool)
}

// Routes holds the backend paths. Paths containing %s take an id.
type Routes struct {
	ListProducts string
	Product      string
	Login        string
	Verify       string
	Me           string
	Cart         string
	CartAdd      string
	CartLine     string
	Address      string
	AddressNew   string
	OrderCOD     string
	OrderOnline  string
}

// DefaultRoutes returns the paths served by the storefront backend.
func DefaultRoutes() Routes {
	return Routes{
		ListProducts: "/api/product/all",
		Product:      "/api/product/%s",
		Login:        "/api/user/login",
		Verify:       "/api/user/verify",
		Me:           "/api/user/me",
		Cart:         "/api/cart/all",
		CartAdd:      "/api/cart/new",
		CartLine:     "/api/cart/%s",
		Address:      "/api/address/%s",
		AddressNew:   "/api/address/new",
		OrderCOD:     "/api/order/new/cod",
		OrderOnline:  "/api/order/new/online",
	}
}

// Client performs backend calls.
type Client struct {
	baseURL       string
	http          *http.Client
	tokens        TokenSource
	routes        Routes
	allowInsecure bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRoutes replaces the default backend paths.
func WithRoutes(r Routes) Option {
	return func(c *Client) { c.routes = r }
}

// WithInsecureToken allows the session token over plain http.
func WithInsecureToken() Option {
	return func(c *Client) { c.allowInsecure = true }
}

// New returns a Client for the backend at baseURL reading the session token
// from tokens.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tokens:  tokens,
		routes:  DefaultRoutes(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request describes one backend round trip.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	auth        bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	if r.auth {
		token, ok := c.tokens.Token()
		if !ok {
			return ErrNoToken
		}
		if req.URL.Scheme != "https" && !c.allowInsecure {
			return ErrInsecureTransport
		}
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", r.path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(b), nil
}

// Message is the {message} response most mutations return.
type Message struct {
	Message string `json:"message"`
}

// ProductQuery is the list filter sent to the backend.
type ProductQuery struct {
	Search      string
	Category    string
	SortByPrice string
	Page        int
}

// ProductList is the catalog listing response.
type ProductList struct {
	Products    []models.Product `json:"products"`
	NewProducts []models.Product `json:"newProduct"`
	Categories  []string         `json:"categories"`
	TotalPages  int              `json:"totalPages"`
}

// ListProducts fetches one page of the filtered catalog.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*ProductList, error) {
	query := url.Values{}
	query.Set("search", q.Search)
	query.Set("category", q.Category)
	query.Set("sortByPrice", q.SortByPrice)
	query.Set("page", strconv.Itoa(q.Page))

	var out ProductList
	if err := c.do(ctx, request{method: http.MethodGet, path: c.routes.ListProducts, query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductDetail is a product with the products related to it.
type ProductDetail struct {
	Product models.Product   `json:"product"`
	Related []models.Product `json:"relatedProduct"`
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id string) (*ProductDetail, error) {
	var out ProductDetail
	path := fmt.Sprintf(c.routes.Product, url.PathEscape(id))
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct replaces the editable fields of a product (admin only).
func (c *Client) UpdateProduct(ctx context.Context, id string, fields models.ProductUpdate) (*Message, error) {
	body, err := jsonBody(fields)
	if err != nil {
		return nil, err
	}
	var out Message
	path := fmt.Sprintf(c.routes.Product, url.PathEscape(id))
	r := request{method: http.MethodPut, path: path, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// File is an image to upload.
type File struct {
	Name    string
	Content io.Reader
}

// UploadProductImages replaces a product's images (admin only).
func (c *Client) UploadProductImages(ctx context.Context, id string, files []File) (*Message, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("encode upload: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("encode upload %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	var out Message
	path := fmt.Sprintf(c.routes.Product, url.PathEscape(id))
	r := request{method: http.MethodPost, path: path, body: &buf, contentType: mw.FormDataContentType(), auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestLogin asks the backend to send an OTP to email.
func (c *Client) RequestLogin(ctx context.Context, email string) (*Message, error) {
	body, err := jsonBody(map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	var out Message
	r := request{method: http.MethodPost, path: c.routes.Login, body: body, contentType: "application/json"}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyResult is the response to a successful OTP verification.
type VerifyResult struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
	Token   string      `json:"token"`
}

// VerifyOTP exchanges email + otp for a session token.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*VerifyResult, error) {
	body, err := jsonBody(map[string]string{"email": email, "otp": otp})
	if err != nil {
		return nil, err
	}
	var out VerifyResult
	r := request{method: http.MethodPost, path: c.routes.Verify, body: body, contentType: "application/json"}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser returns the user owning the stored session token.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, request{method: http.MethodGet, path: c.routes.Me, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CartResult is the server-side cart.
type CartResult struct {
	Cart            []models.CartLine `json:"cart"`
	SubTotal        decimal.Decimal   `json:"subTotal"`
	SumOfQuantities int               `json:"sumofQuantities"`
}

// GetCart returns the authenticated user's cart.
func (c *Client) GetCart(ctx context.Context) (*CartResult, error) {
	var out CartResult
	if err := c.do(ctx, request{method: http.MethodGet, path: c.routes.Cart, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToCart adds quantity units of a product.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*Message, error) {
	body, err := jsonBody(map[string]any{"product": productID, "quantity": quantity})
	if err != nil {
		return nil, err
	}
	var out Message
	r := request{method: http.MethodPost, path: c.routes.CartAdd, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCartLine sets the quantity of a cart line.
func (c *Client) UpdateCartLine(ctx context.Context, lineID string, quantity int) (*Message, error) {
	body, err := jsonBody(map[string]int{"quantity": quantity})
	if err != nil {
		return nil, err
	}
	var out Message
	path := fmt.Sprintf(c.routes.CartLine, url.PathEscape(lineID))
	r := request{method: http.MethodPut, path: path, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveCartLine deletes a cart line.
func (c *Client) RemoveCartLine(ctx context.Context, lineID string) (*Message, error) {
	var out Message
	path := fmt.Sprintf(c.routes.CartLine, url.PathEscape(lineID))
	if err := c.do(ctx, request{method: http.MethodDelete, path: path, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAddress fetches a saved delivery address.
func (c *Client) GetAddress(ctx context.Context, id string) (*models.Address, error) {
	var out models.Address
	path := fmt.Sprintf(c.routes.Address, url.PathEscape(id))
	if err := c.do(ctx, request{method: http.MethodGet, path: path, auth: true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddressResult is the response to saving an address.
type AddressResult struct {
	Message string         `json:"message"`
	Address models.Address `json:"address"`
}

// CreateAddress saves a delivery address for the current user.
func (c *Client) CreateAddress(ctx context.Context, address, phone string) (*AddressResult, error) {
	body, err := jsonBody(models.Address{Address: address, Phone: phone})
	if err != nil {
		return nil, err
	}
	var out AddressResult
	r := request{method: http.MethodPost, path: c.routes.AddressNew, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderRequest is the checkout payload shared by both payment methods.
type OrderRequest struct {
	Method  string `json:"method"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// PlaceOrderCOD places a cash-on-delivery order for the current cart.
func (c *Client) PlaceOrderCOD(ctx context.Context, order OrderRequest) (*Message, error) {
	body, err := jsonBody(order)
	if err != nil {
		return nil, err
	}
	var out Message
	r := request{method: http.MethodPost, path: c.routes.OrderCOD, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentSession is the hosted payment session. URL is empty when the
// backend could not create one.
type PaymentSession struct {
	URL string `json:"url"`
}

// CreateOnlinePaymentSession asks the backend for a hosted payment page.
func (c *Client) CreateOnlinePaymentSession(ctx context.Context, order OrderRequest) (*PaymentSession, error) {
	body, err := jsonBody(order)
	if err != nil {
		return nil, err
	}
	var out PaymentSession
	r := request{method: http.MethodPost, path: c.routes.OrderOnline, body: body, contentType: "application/json", auth: true}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
