package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/config"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/httpclient"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/mail"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/migrate"
	s3infra "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/s3"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/yookassa"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/jobs/cleanup"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
	redrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/redis"
	authsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/auth"
	chattokensvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
	entsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/entitlements"
	filesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/files"
	notifysvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/notify"
	paymentsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/payments"
	ratesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/rate"
	supportsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/support"
	twofasvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/twofa"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if err := migrate.Up(cfg.Postgres.DSN, cfg.Postgres.MigrationsDir); err != nil {
			log.Warn("migrations failed", zap.Error(err))
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	userRepo := pgrepo.NewUserRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	chatTokenRepo := pgrepo.NewChatTokenRepo(pool)
	supportRepo := pgrepo.NewSupportRepo(pool)
	courseFileRepo := pgrepo.NewCourseFileRepo(pool)
	twoFARepo := redrepo.NewTwoFARepo(redisClient)

	mailSender := mail.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.SMTP.From)

	gateway := yookassa.NewClient(yookassa.Config{
		ShopID:    cfg.YooKassa.ShopID,
		SecretKey: cfg.YooKassa.SecretKey,
		APIBase:   cfg.YooKassa.APIBase,
	}, httpclient.New(cfg.YooKassa.Timeout))

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	chatTokenService := chattokensvc.NewService(chatTokenRepo)
	authService := authsvc.NewService(jwtManager, userRepo, chatTokenService)
	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Purchases: purchaseRepo,
		Users:     userRepo,
	})
	notifyService := notifysvc.NewService(userRepo, chatTokenService, mailSender, notifysvc.Config{
		AdminURL:     cfg.AdminNotify.URL,
		AdminEmail:   cfg.AdminNotify.Email,
		AdminTimeout: cfg.AdminNotify.Timeout,
		ChatURL:      cfg.Chat.BaseURL,
		LoginURL:     cfg.Site.LoginURL,
	}, log)
	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Gateway:    gateway,
		Reconciler: entitlementService,
		Notifier:   notifyService,
		Users:      userRepo,
		Purchases:  purchaseRepo,
		ReturnURL:  cfg.YooKassa.ReturnURL,
	})
	twoFAService := twofasvc.NewService(twoFARepo, mailSender, twofasvc.Config{
		AdminPassword: cfg.TwoFA.AdminPassword,
		AdminEmail:    cfg.AdminNotify.Email,
		CodeTTL:       cfg.TwoFA.CodeTTL,
		TOTPIssuer:    cfg.TwoFA.TOTPIssuer,
		TOTPAccount:   cfg.TwoFA.TOTPAccount,
		TOTPSecret:    cfg.TwoFA.TOTPSecret,
	})
	supportService := supportsvc.NewService(supportRepo)

	rateRepo := redrepo.NewRateRepo(redisClient)
	loginLimiter := ratesvc.NewLimiter(rateRepo, "rate:login", 10, time.Minute)
	paymentLimiter := ratesvc.NewLimiter(rateRepo, "rate:payment", 5, time.Minute)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	fileStorage := filesvc.NewS3Storage(s3Client, cfg.S3.Bucket, cfg.S3.PublicURL)
	fileService := filesvc.NewService(courseFileRepo, fileStorage)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if pool != nil {
		cleanupJob := cleanup.New(chatTokenRepo, purchaseRepo, 7*24*time.Hour, log)
		go runCleanupLoop(ctx, cleanupJob, 6*time.Hour, log)
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		LoginLimiter:     loginLimiter,
		PaymentLimiter:   paymentLimiter,
		PaymentService:   paymentService,
		ChatTokenService: chatTokenService,
		TwoFAService:     twoFAService,
		SupportService:   supportService,
		FileService:      fileService,
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
		httpRouter: r,
	}, nil
}

func runCleanupLoop(ctx context.Context, job *cleanup.Job, interval time.Duration, log *zap.Logger) {
	if err := job.Run(ctx); err != nil {
		log.Warn("cleanup run failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Run(ctx); err != nil {
				log.Warn("cleanup run failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Run() error {
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
