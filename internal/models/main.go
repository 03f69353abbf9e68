// Package models defines the storefront data structures shared by the
// client engines and the sandbox authority.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role values carried by User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account record returned by the backend after verification
// and by the "who am I" endpoint.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"_id"`
	// Name is the display name, defaults to the mailbox part of Email.
	Name string `json:"name"`
	// Email is the address the one-time passcode is sent to.
	Email string `json:"email"`
	// Role is either RoleUser or RoleAdmin.
	Role string `json:"role"`
}

// IsAdmin reports whether the user may update products.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Image is a single product picture.
type Image struct {
	URL string `json:"url"`
}

// Product is a catalog item. Clients never mutate it locally.
type Product struct {
	ID       string          `json:"_id"`
	Title    string          `json:"title"`
	About    string          `json:"about"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
	Images   []Image         `json:"images"`
	// Latest marks the product as one of the newest arrivals.
	Latest    bool      `json:"latest"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductUpdate carries the admin-editable product fields.
type ProductUpdate struct {
	Title    string          `json:"title"`
	About    string          `json:"about"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Category string          `json:"category"`
}

// CartLine is one product in a cart with its quantity (always >= 1).
type CartLine struct {
	ID       string  `json:"_id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal returns price × quantity for the line.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Address is a delivery destination.
type Address struct {
	ID      string `json:"_id,omitempty"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Payment methods accepted at checkout.
const (
	MethodCOD    = "cod"
	MethodOnline = "online"
)

// OrderItem is a snapshot of a cart line at order time.
type OrderItem struct {
	ProductID string          `json:"product"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Order is a placed order.
type Order struct {
	ID        string          `json:"_id"`
	UserID    string          `json:"user"`
	Method    string          `json:"method"`
	Address   string          `json:"address"`
	Phone     string          `json:"phone"`
	Items     []OrderItem     `json:"items"`
	Total     decimal.Decimal `json:"subTotal"`
	Paid      bool            `json:"paid"`
	CreatedAt time.Time       `json:"createdAt"`
}
