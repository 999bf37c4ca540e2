package shell

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/fault"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/notify"
	"github.com/xenking/kart-storefront/internal/wire"
)

type command struct {
	usage   string
	minArgs int
	run     func(s *Shell, args []string) error
}

const helpText = `Commands:
  register <user> <password> [email]   create an account
  login <user> <password>              log in and load the cart
  logout                               forget the session
  whoami                               show the current user
  products [category]                  list the catalog
  add <product> [qty]                  add a product to the cart
  cart                                 reload the cart from the server
  show                                 show the local cart
  set <item> <qty>                     set the quantity of a cart line
  inc <item> | dec <item>              change a quantity by one
  rm <item>                            remove a cart line
  checkout                             place an order with the cart
  orders                               show the first page of orders
  more                                 fetch the next page of orders
  quit                                 exit
`

var commands = map[string]command{
	"help":     {usage: "help", run: (*Shell).help},
	"register": {usage: "register <user> <password> [email]", minArgs: 2, run: (*Shell).register},
	"login":    {usage: "login <user> <password>", minArgs: 2, run: (*Shell).login},
	"logout":   {usage: "logout", run: (*Shell).logout},
	"whoami":   {usage: "whoami", run: (*Shell).whoami},
	"products": {usage: "products [category]", run: (*Shell).products},
	"add":      {usage: "add <product> [qty]", minArgs: 1, run: (*Shell).add},
	"cart":     {usage: "cart", run: (*Shell).loadCart},
	"show":     {usage: "show", run: (*Shell).show},
	"set":      {usage: "set <item> <qty>", minArgs: 2, run: (*Shell).set},
	"inc":      {usage: "inc <item>", minArgs: 1, run: (*Shell).inc},
	"dec":      {usage: "dec <item>", minArgs: 1, run: (*Shell).dec},
	"rm":       {usage: "rm <item>", minArgs: 1, run: (*Shell).rm},
	"checkout": {usage: "checkout", run: (*Shell).checkout},
	"orders":   {usage: "orders", run: (*Shell).orders},
	"more":     {usage: "more", run: (*Shell).more},
	"quit":     {usage: "quit", run: (*Shell).quit},
	"exit":     {usage: "exit", run: (*Shell).quit},
}

func (s *Shell) help([]string) error {
	s.printf("%s", helpText)
	return nil
}

func (s *Shell) quit([]string) error {
	return errQuit
}

func (s *Shell) register(args []string) error {
	creds := wire.Credentials{Username: args[0], Password: args[1]}
	if len(args) > 2 {
		creds.Email = args[2]
	}
	s.async("register", func(ctx context.Context) func() {
		err := s.api.Register(ctx, creds)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			s.printf("Account %s created, you can log in now\n", creds.Username)
		}
	})
	return nil
}

func (s *Shell) login(args []string) error {
	username, password := args[0], args[1]
	s.async("login", func(ctx context.Context) func() {
		tokens, err := s.api.Login(ctx, username, password)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			err := s.auth.Login(tokens.Access, tokens.Refresh, tokens.User)
			s.cart.ClearLocal()
			s.history.Reset()
			if err != nil {
				s.report(err)
				return
			}
			s.printf("Logged in as %s\n", tokens.User.Username)
			_ = s.loadCart(nil)
		}
	})
	return nil
}

func (s *Shell) logout([]string) error {
	s.cart.ClearLocal()
	s.history.Reset()
	if err := s.auth.Logout(); err != nil {
		s.report(err)
		return nil
	}
	s.printf("Logged out\n")
	return nil
}

func (s *Shell) whoami([]string) error {
	sess := s.auth.Session()
	if sess == nil {
		s.printf("Not logged in\n")
		return nil
	}
	if sess.User.Email != "" {
		s.printf("%s <%s>\n", sess.User.Username, sess.User.Email)
		return nil
	}
	s.printf("%s\n", sess.User.Username)
	return nil
}

func (s *Shell) products(args []string) error {
	category := ""
	if len(args) > 0 {
		category = args[0]
	}
	s.async("products", func(ctx context.Context) func() {
		list, err := s.api.Products(ctx, category)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			s.renderProducts(list)
		}
	})
	return nil
}

func (s *Shell) add(args []string) error {
	productID := args[0]
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			s.printf("quantity must be a positive number\n")
			return nil
		}
		qty = n
	}
	token := s.auth.AccessToken()
	if token == "" {
		s.report(&fault.AuthError{Op: "add to cart"})
		return nil
	}

	s.async("add", func(ctx context.Context) func() {
		if err := s.api.AddToCart(ctx, token, productID, qty); err != nil {
			return func() { s.report(err) }
		}
		err := s.cart.Load(ctx)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			s.printf("Added %d × %s\n", qty, productID)
			s.renderCart()
		}
	})
	return nil
}

func (s *Shell) loadCart([]string) error {
	s.async("cart", func(ctx context.Context) func() {
		err := s.cart.Load(ctx)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			s.renderCart()
		}
	})
	return nil
}

func (s *Shell) show([]string) error {
	s.renderCart()
	return nil
}

func (s *Shell) set(args []string) error {
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		s.printf("quantity must be a number\n")
		return nil
	}
	if _, err := s.cart.SetQuantity(args[0], qty); err != nil {
		s.report(err)
		return nil
	}
	s.renderCart()
	return nil
}

func (s *Shell) inc(args []string) error {
	if _, err := s.cart.Increment(args[0]); err != nil {
		s.report(err)
		return nil
	}
	s.renderCart()
	return nil
}

func (s *Shell) dec(args []string) error {
	if _, err := s.cart.Decrement(args[0]); err != nil {
		s.report(err)
		return nil
	}
	s.renderCart()
	return nil
}

func (s *Shell) rm(args []string) error {
	if !s.cart.RemoveItem(args[0]) {
		s.printf("Nothing to remove\n")
		return nil
	}
	s.renderCart()
	return nil
}

func (s *Shell) checkout([]string) error {
	s.async("checkout", func(ctx context.Context) func() {
		o, err := s.cart.Checkout(ctx)
		return func() {
			if err != nil {
				s.report(err)
				return
			}
			s.history.Reset()
			if o == nil {
				s.printf("Order placed\n")
				return
			}
			s.printf("Order %s placed, total %s\n", o.ID, cart.FormatAmount(o.Total))
		}
	})
	return nil
}

func (s *Shell) orders([]string) error {
	s.history.Reset()
	return s.more(nil)
}

func (s *Shell) more([]string) error {
	sess := s.auth.Session()
	from := s.history.Len()
	s.async("orders", func(ctx context.Context) func() {
		err := s.history.FetchNext(ctx, sess)
		return func() {
			switch {
			case errors.Is(err, order.ErrNoMorePages):
				s.printf("No more orders\n")
			case err != nil:
				s.report(err)
			default:
				s.renderOrders(from)
			}
		}
	})
	return nil
}

// report shows err to the user. Superseded and disposed results are
// expected during normal use and stay silent.
func (s *Shell) report(err error) {
	var (
		authErr     *fault.AuthError
		businessErr *fault.BusinessError
	)
	switch {
	case errors.Is(err, cart.ErrSuperseded), errors.Is(err, order.ErrSuperseded),
		errors.Is(err, cart.ErrDisposed), errors.Is(err, order.ErrDisposed):
		s.lg.Debug("Dropped result", zap.Error(err))
	case errors.As(err, &businessErr):
		notify.Error(s.out, businessErr)
	case errors.As(err, &authErr) && authErr.Message == "":
		s.out.Notify(notify.Notification{Level: notify.LevelError, Message: authErr.Error() + ", log in first"})
	case errors.Is(err, cart.ErrItemNotFound):
		notify.Error(s.out, errors.New("no such cart item, see show"))
	default:
		notify.Error(s.out, err)
	}
}
