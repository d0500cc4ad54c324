package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/config"
	"github.com/creatorhub/backend/internal/gateway/paystack"
	"github.com/creatorhub/backend/internal/infra/httpclient"
	s3infra "github.com/creatorhub/backend/internal/infra/s3"
	"github.com/creatorhub/backend/internal/jobs/cleanup"
	pgrepo "github.com/creatorhub/backend/internal/repo/postgres"
	redrepo "github.com/creatorhub/backend/internal/repo/redis"
	authsvc "github.com/creatorhub/backend/internal/services/auth"
	cartsvc "github.com/creatorhub/backend/internal/services/cart"
	checkoutsvc "github.com/creatorhub/backend/internal/services/checkout"
	downloadsvc "github.com/creatorhub/backend/internal/services/downloads"
	feesvc "github.com/creatorhub/backend/internal/services/fees"
	ratesvc "github.com/creatorhub/backend/internal/services/rate"
	reconcilesvc "github.com/creatorhub/backend/internal/services/reconcile"
	storagesvc "github.com/creatorhub/backend/internal/services/storage"
	"github.com/creatorhub/backend/internal/validate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	cleanup    *cleanup.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log, cfg.CORS)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	cartRepo := redrepo.NewCartRepo(redisClient, cfg.Cart.TTL)
	templateRepo := pgrepo.NewTemplateRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	notificationRepo := pgrepo.NewNotificationRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager)
	cartService := cartsvc.NewService(cartRepo)
	rateLimiter := ratesvc.NewLimiter(rateRepo, map[string]ratesvc.Limit{
		"checkout": {PerMinute: cfg.Limits.Checkout.PerMinute, Per10Sec: cfg.Limits.Checkout.Per10Sec},
		"verify":   {PerMinute: cfg.Limits.Verify.PerMinute, Per10Sec: cfg.Limits.Verify.Per10Sec},
		"download": {PerMinute: cfg.Limits.Download.PerMinute, Per10Sec: cfg.Limits.Download.Per10Sec},
	})

	feeCalculator, err := feesvc.NewCalculator(cfg.Checkout.PlatformFeeBPS)
	if err != nil {
		return nil, fmt.Errorf("fee calculator: %w", err)
	}

	var gatewayClient *paystack.Client
	if c, err := paystack.NewClient(paystack.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		SecretKey: cfg.Gateway.SecretKey,
	}, httpclient.New(cfg.Gateway.Timeout)); err != nil {
		log.Warn("payment gateway init failed, continuing in degraded mode", zap.Error(err))
	} else {
		gatewayClient = c
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	templateStorage := storagesvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	if s3Client != nil {
		if err := templateStorage.EnsureBucket(ctx); err != nil {
			log.Warn("s3 bucket check failed, downloads may not presign", zap.Error(err))
		}
	}

	checkoutDeps := checkoutsvc.Dependencies{
		Templates: templateRepo,
		Purchases: purchaseRepo,
		Carts:     cartService,
		Fees:      feeCalculator,
	}
	reconcileDeps := reconcilesvc.Dependencies{
		Purchases: purchaseRepo,
		Carts:     cartService,
	}
	if gatewayClient != nil {
		checkoutDeps.Gateway = gatewayClient
		reconcileDeps.Gateway = gatewayClient
	}

	checkoutService := checkoutsvc.NewService(checkoutDeps, checkoutsvc.Config{
		Currency:     cfg.Checkout.Currency,
		SuccessURL:   cfg.Checkout.SuccessURL,
		CancelURL:    cfg.Checkout.CancelURL,
		MaxDownloads: cfg.Downloads.MaxDownloads,
		TokenTTL:     cfg.Downloads.TokenTTL,
	})
	reconcileService := reconcilesvc.NewService(reconcileDeps, cfg.Downloads.TokenTTL)
	downloadService := downloadsvc.NewService(downloadsvc.Dependencies{
		Purchases: purchaseRepo,
		Templates: templateRepo,
		Storage:   templateStorage,
	}, cfg.Downloads.URLTTL)

	cleanupJob := cleanup.NewJob(notificationRepo, log, cleanup.Config{
		Interval:              cfg.Cleanup.Interval,
		NotificationRetention: cfg.Cleanup.NotificationRetention,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		CartService:      cartService,
		CheckoutService:  checkoutService,
		ReconcileService: reconcileService,
		DownloadService:  downloadService,
		PurchaseRepo:     purchaseRepo,
		RateLimiter:      rateLimiter,
		Validator:        validate.New(),
		Logger:           log,
		Config:           cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		cleanup:    cleanupJob,
		httpRouter: r,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.cleanup != nil {
		go a.cleanup.RunPeriodic(ctx)
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
