package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	apicontract "github.com/tuanvumaihuynh/stock-ledger/api-contract"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/metric"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/middleware"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http/swagger"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

var tracer = otel.Tracer("internal/http")

// UploadsPath serves images of the local image store.
const UploadsPath = "/static/uploads"

// Registrar mounts extra routes, such as the web front end.
type Registrar interface {
	Register(r chi.Router)
}

// Services are the application services exposed over HTTP.
type Services struct {
	Products service.ProductService
	Sales    service.SaleService
	Summary  service.SummaryService
	Images   service.ImageService
	CSV      service.CSVService
	Health   db.HealthChecker

	// UploadDir is served under UploadsPath when set.
	UploadDir string
	Web       Registrar
}

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metric.Metrics
	services Services
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	log *slog.Logger,
	registry *prometheus.Registry,
	services Services,
) *Service {
	return &Service{
		cfg:      cfg,
		logger:   log.With(slog.String("service", "http")),
		registry: registry,
		metrics:  metric.New(registry),
		services: services,
	}
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handler, err := s.Handler(ctx)
	if err != nil {
		return nil, err
	}

	return s.RunWithServer(ctx, handler)
}

// Handler builds the router with every middleware and route registered.
func (s *Service) Handler(ctx context.Context) (http.Handler, error) {
	r := chi.NewRouter()
	if err := s.RegisterMiddlewares(ctx, r); err != nil {
		return nil, err
	}

	if s.cfg.Swagger {
		if err := swagger.Register(r, "Stock Ledger API"); err != nil {
			return nil, fmt.Errorf("register swagger: %w", err)
		}
	}

	s.RegisterHandlers(r)

	return r, nil
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(ctx context.Context, r chi.Router) error {
	doc, err := apicontract.LoadSpec(ctx)
	if err != nil {
		return fmt.Errorf("load openapi spec: %w", err)
	}

	validator, err := middleware.OpenAPIValidator(doc, s.handleRequestError)
	if err != nil {
		return err
	}

	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(s.cfg.AllowedOrigins),
		middleware.Secure(s.logger, s.cfg.DevMode),
		middleware.Logging(s.logger),
		validator,
	)

	return nil
}

func (s *Service) RegisterHandlers(r chi.Router) {
	resp := &responder{logger: s.logger}
	products := newProductHandler(resp, s.services.Products, s.services.CSV, s.cfg.MaxUploadBytes)
	sales := newSaleHandler(resp, s.services.Sales, s.services.Summary)
	uploads := newUploadHandler(resp, s.services.Images, s.cfg.MaxUploadBytes)
	health := &healthHandler{responder: resp, checker: s.services.Health}

	limited := middleware.RateLimit(s.cfg.UploadRateLimit, s.cfg.UploadRateWindow)

	r.Route("/api", func(r chi.Router) {
		r.Route("/produtos", func(r chi.Router) {
			r.Get("/", s.handle(products.listProducts))
			r.Post("/", s.handle(products.createProduct))
			r.Get("/exportar", s.handle(products.exportProducts))
			r.With(limited).Post("/importar", s.handle(products.importProducts))
			r.Get("/{id}", s.handle(products.getProduct))
			r.Put("/{id}", s.handle(products.updateProduct))
			r.Delete("/{id}", s.handle(products.deleteProduct))
		})

		r.Route("/vendas", func(r chi.Router) {
			r.Get("/", s.handle(sales.listSales))
			r.Post("/", s.handle(sales.createSale))
			r.Get("/resumo", s.handle(sales.salesSummary))
			r.Get("/{id}", s.handle(sales.getSale))
			r.Put("/{id}", s.handle(sales.updateSale))
			r.Delete("/{id}", s.handle(sales.deleteSale))
		})

		r.With(limited).Post("/upload", s.handle(uploads.uploadImage))
	})

	r.Get("/healthz", s.handle(health.healthz))

	if s.services.UploadDir != "" {
		fs := http.StripPrefix(UploadsPath, http.FileServer(http.Dir(s.services.UploadDir)))
		r.Get(UploadsPath+"/*", fs.ServeHTTP)
	}

	if s.services.Web != nil {
		s.services.Web.Register(r)
	}

	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	}))
}
