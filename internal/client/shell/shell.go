// Package shell is the interactive storefront front end.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/app"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/checkout"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

const helpText = `Available commands:
  products                      show the current catalog page
  search <text>                 filter by text (no argument clears)
  category <name>               filter by category (no argument clears)
  sort <asc|desc|none>          order by price
  page <n>                      select a page
  product <id>                  show one product and related products
  login <email>                 request a one-time password
  verify <otp>                  complete login
  me                            show the signed-in user
  logout                        sign out
  cart                          show the cart
  add <product-id> [qty]        add to cart
  qty <line-id> <n>             change a line quantity
  remove <line-id>              remove a line
  address <id>                  select a delivery address
  new-address <phone> <text>    create a delivery address
  method <cod|online>           choose how to pay
  checkout                      place the order
  edit <id> <field>=<value>...  admin: update title, about, price, stock, category
  upload <id> <file>...         admin: replace product images
  exit`

// Printer writes user-facing output. It implements state.Notifier and
// checkout.Navigator so engines can talk to the user directly.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPrinter returns a Printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Success(msg string) { p.printf("✔ %s\n", msg) }
func (p *Printer) Error(msg string)   { p.printf("✘ %s\n", msg) }

// Redirect prints the hosted payment link; the user finishes payment there.
func (p *Printer) Redirect(url string) error {
	p.printf("Continue payment at: %s\n", url)
	return nil
}

func (p *Printer) ShowOrders() { p.printf("Order placed. Thank you!\n") }

// Shell reads commands from in and drives the engines of a.
type Shell struct {
	app *app.App
	in  io.Reader
	out *Printer
}

// New returns a shell over a.
func New(a *app.App, in io.Reader, out *Printer) *Shell {
	return &Shell{app: a, in: in, out: out}
}

// Run executes commands until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.out.printf("gophshop> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		args := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			s.out.printf("Bye\n")
			return nil
		}
		if err := s.Exec(ctx, args); err != nil {
			s.out.printf("error: %v\n", err)
		}
	}
}

// Exec runs a single command.
func (s *Shell) Exec(ctx context.Context, args []string) error {
	a := s.app
	rest := strings.Join(args[1:], " ")

	switch args[0] {
	case "help":
		s.out.printf("%s\n", helpText)
	case "products":
		a.Catalog.FetchProducts(ctx)
		s.printCatalog(a.Catalog.Snapshot())
	case "search":
		return s.setQuery(ctx, catalog.FieldSearch, rest)
	case "category":
		return s.setQuery(ctx, catalog.FieldCategory, rest)
	case "sort":
		if rest == "none" {
			rest = catalog.SortNone
		}
		return s.setQuery(ctx, catalog.FieldSort, rest)
	case "page":
		return s.setQuery(ctx, catalog.FieldPage, rest)
	case "product":
		if len(args) < 2 {
			return usage("product <id>")
		}
		a.Catalog.FetchProduct(ctx, args[1])
		s.printProduct(a.Catalog.Snapshot())
	case "login":
		if len(args) < 2 {
			return usage("login <email>")
		}
		return ignoreReported(a.Session.LoginUser(ctx, args[1]))
	case "verify":
		if len(args) < 2 {
			return usage("verify <otp>")
		}
		return ignoreReported(a.Session.VerifyUser(ctx, args[1]))
	case "me":
		snap := a.Session.Snapshot()
		if snap.User == nil {
			s.out.printf("Not signed in (%s)\n", snap.Status)
			return nil
		}
		s.out.printf("%s <%s> role=%s\n", snap.User.Name, snap.User.Email, snap.User.Role)
	case "logout":
		return a.Session.LogoutUser()
	case "cart":
		if err := a.Cart.FetchCart(ctx); err != nil {
			return err
		}
		s.printCart()
	case "add":
		if len(args) < 2 {
			return usage("add <product-id> [qty]")
		}
		qty := 0
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return usage("add <product-id> [qty]")
			}
			qty = n
		}
		return ignoreReported(a.Cart.AddToCart(ctx, args[1], qty))
	case "qty":
		if len(args) < 3 {
			return usage("qty <line-id> <n>")
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return usage("qty <line-id> <n>")
		}
		return ignoreReported(a.Cart.UpdateQuantity(ctx, args[1], n))
	case "remove":
		if len(args) < 2 {
			return usage("remove <line-id>")
		}
		return ignoreReported(a.Cart.RemoveFromCart(ctx, args[1]))
	case "address":
		if len(args) < 2 {
			return usage("address <id>")
		}
		if err := a.Checkout.LoadAddress(ctx, args[1]); err != nil {
			return err
		}
		addr := a.Checkout.Snapshot().Address
		s.out.printf("Deliver to: %s (%s)\n", addr.Address, addr.Phone)
	case "new-address":
		if len(args) < 3 {
			return usage("new-address <phone> <text>")
		}
		res, err := a.API.CreateAddress(ctx, strings.Join(args[2:], " "), args[1])
		if err != nil {
			return err
		}
		s.out.printf("%s (id %s)\n", res.Message, res.Address.ID)
	case "method":
		if len(args) < 2 {
			return usage("method <cod|online>")
		}
		return a.Checkout.SetMethod(args[1])
	case "checkout":
		s.printCart()
		return ignoreReported(a.Checkout.Submit(ctx))
	case "edit":
		if len(args) < 3 {
			return usage("edit <id> <field>=<value>...")
		}
		fields, err := s.editFields(args[1], args[2:])
		if err != nil {
			return err
		}
		return ignoreReported(a.Catalog.UpdateProduct(ctx, args[1], fields))
	case "upload":
		if len(args) < 2 {
			return usage("upload <id> <file>...")
		}
		files, closeAll, err := openFiles(args[2:])
		if err != nil {
			return err
		}
		defer closeAll()
		return ignoreReported(a.Catalog.UploadImages(ctx, args[1], files))
	default:
		s.out.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return nil
}

func (s *Shell) setQuery(ctx context.Context, field catalog.Field, value string) error {
	if err := s.app.Catalog.SetQueryField(ctx, field, value); err != nil {
		return err
	}
	s.app.Catalog.Settle()
	s.printCatalog(s.app.Catalog.Snapshot())
	return nil
}

// PrintCatalog writes the current catalog page.
func (s *Shell) PrintCatalog() {
	s.printCatalog(s.app.Catalog.Snapshot())
}

func (s *Shell) printCatalog(snap catalog.Snapshot) {
	q := snap.Query
	s.out.printf("Page %d/%d  search=%q category=%q sort=%q\n", q.Page, snap.TotalPages, q.Search, q.Category, q.Sort)
	if len(snap.Products) == 0 {
		s.out.printf("  no products\n")
	}
	for _, p := range snap.Products {
		s.out.printf("  %s  %-30s %10s  stock %d\n", p.ID, p.Title, p.Price.StringFixed(2), p.Stock)
	}
	if len(snap.NewArrivals) > 0 {
		titles := make([]string, 0, len(snap.NewArrivals))
		for _, p := range snap.NewArrivals {
			titles = append(titles, p.Title)
		}
		s.out.printf("New arrivals: %s\n", strings.Join(titles, ", "))
	}
	if len(snap.Categories) > 0 {
		s.out.printf("Categories: %s\n", strings.Join(snap.Categories, ", "))
	}
}

func (s *Shell) printProduct(snap catalog.Snapshot) {
	p := snap.Current
	if p == nil {
		s.out.printf("Product not loaded\n")
		return
	}
	s.out.printf("%s\n  %s\n  price %s  stock %d  category %s\n", p.Title, p.About, p.Price.StringFixed(2), p.Stock, p.Category)
	for _, img := range p.Images {
		s.out.printf("  image %s\n", img.URL)
	}
	for _, r := range snap.Related {
		s.out.printf("  related: %s %s\n", r.ID, r.Title)
	}
}

func (s *Shell) printCart() {
	snap := s.app.Cart.Snapshot()
	if len(snap.Lines) == 0 {
		s.out.printf("Cart is empty\n")
		return
	}
	for _, l := range snap.Lines {
		s.out.printf("  %s  %-30s %3d x %s = %s\n", l.ID, l.Product.Title, l.Quantity,
			l.Product.Price.StringFixed(2), l.LineTotal().StringFixed(2))
	}
	s.out.printf("Items: %d  Subtotal: %s\n", snap.TotalItems(), snap.Subtotal().StringFixed(2))
}

// editFields starts from the loaded product so unspecified fields are kept.
func (s *Shell) editFields(id string, pairs []string) (models.ProductUpdate, error) {
	var u models.ProductUpdate
	if cur := s.app.Catalog.Snapshot().Current; cur != nil && cur.ID == id {
		u = models.ProductUpdate{Title: cur.Title, About: cur.About, Price: cur.Price, Stock: cur.Stock, Category: cur.Category}
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return u, fmt.Errorf("expected field=value, got %q", pair)
		}
		switch k {
		case "title":
			u.Title = v
		case "about":
			u.About = v
		case "category":
			u.Category = v
		case "price":
			d, err := decimal.NewFromString(v)
			if err != nil {
				return u, fmt.Errorf("invalid price %q: %w", v, err)
			}
			u.Price = d
		case "stock":
			n, err := strconv.Atoi(v)
			if err != nil {
				return u, fmt.Errorf("invalid stock %q: %w", v, err)
			}
			u.Stock = n
		default:
			return u, fmt.Errorf("unknown field %q", k)
		}
	}
	return u, nil
}

func openFiles(paths []string) ([]api.File, func(), error) {
	var files []api.File
	var opened []*os.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		files = append(files, api.File{Name: filepath.Base(p), Content: f})
	}
	return files, closeAll, nil
}

func usage(u string) error {
	return fmt.Errorf("usage: %s", u)
}

// ignoreReported drops errors the engines already reported through the
// notifier. Rejected input and busy errors are returned for display.
func ignoreReported(err error) error {
	for _, local := range localErrors {
		if errors.Is(err, local) {
			return err
		}
	}
	return nil
}

var localErrors = []error{
	catalog.ErrValidation,
	session.ErrValidation,
	session.ErrBusy,
	cart.ErrValidation,
	checkout.ErrValidation,
	checkout.ErrBusy,
}
