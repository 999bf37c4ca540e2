package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/wire"
)

// upsertWorkers bounds concurrent product upserts.
const upsertWorkers = 8

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

type options struct {
	databaseURL  string
	files        fileList
	fake         int
	fakeSeed     uint64
	demoUser     string
	demoPassword string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Var(&opts.files, "products-file", "product catalog JSON, optionally .gz (repeatable)")
	flag.IntVar(&opts.fake, "fake", 0, "number of generated products to add")
	flag.Uint64Var(&opts.fakeSeed, "fake-seed", 0, "seed of generated products (0 means random)")
	flag.StringVar(&opts.demoUser, "demo-user", "demo", "username of the demo account (empty to skip)")
	flag.StringVar(&opts.demoPassword, "demo-password", "", "password of the demo account (or STOREFRONT_DEMO_PASSWORD env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if len(opts.files) == 0 {
		opts.files = fileList{"db/seed/products.json"}
	}
	if opts.demoPassword == "" {
		opts.demoPassword = os.Getenv("STOREFRONT_DEMO_PASSWORD")
	}
	if opts.demoUser != "" && opts.demoPassword == "" {
		slog.Error("demo password is required: set --demo-password or STOREFRONT_DEMO_PASSWORD, or pass --demo-user=")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	catalog, err := readCatalogs(ctx, opts.files)
	if err != nil {
		return errors.Wrap(err, "read catalogs")
	}
	if opts.fake > 0 {
		catalog = append(catalog, fakeProducts(opts.fake, opts.fakeSeed)...)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := upsertProducts(ctx, postgres.NewProductRepository(pool), catalog); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if opts.demoUser != "" {
		if err := seedDemoUser(ctx, postgres.NewUserRepository(pool), opts.demoUser, opts.demoPassword); err != nil {
			return errors.Wrap(err, "seed demo user")
		}
	}

	return nil
}

// readCatalogs decodes every file concurrently and concatenates the
// results in argument order.
func readCatalogs(ctx context.Context, files []string) ([]product.Product, error) {
	results := make([][]product.Product, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			products, err := readCatalog(ctx, path)
			if err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			slog.Info("read catalog", slog.String("path", path), slog.Int("products", len(products)))
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []product.Product
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func readCatalog(ctx context.Context, path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products, err := wire.DecodeProducts(jx.Decode(r, 64*1024))
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return products, nil
}

func fakeProducts(n int, seed uint64) []product.Product {
	faker := gofakeit.New(seed)
	products := make([]product.Product, n)
	for i := range products {
		products[i] = product.Product{
			ID:          faker.UUID(),
			Name:        faker.ProductName(),
			Description: faker.Sentence(8),
			Price:       decimal.NewFromFloat(faker.Price(1, 200)).Round(2),
			Stock:       faker.Number(0, 50),
			Category:    strings.ToLower(faker.ProductCategory()),
			Images:      []string{faker.URL()},
		}
	}
	slog.Info("generated products", slog.Int("count", n))
	return products
}

func upsertProducts(ctx context.Context, repo *postgres.ProductRepository, products []product.Product) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for _, p := range products {
		g.Go(func() error {
			return repo.Upsert(ctx, p)
		})
	}
	return g.Wait()
}

func seedDemoUser(ctx context.Context, repo *postgres.UserRepository, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	account := &auth.Account{
		User:         auth.User{Username: username, Email: username + "@example.com"},
		PasswordHash: string(hash),
	}
	if err := repo.Upsert(ctx, account); err != nil {
		return err
	}

	slog.Info("upserted demo user", slog.String("username", username), slog.String("id", account.ID))
	return nil
}
