// Package app initializes and runs the recipe service.
// It configures logging, storage, image storage, authentication, and routing,
// and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/auth"
	"github.com/patric-chuzhbe/recipebook/internal/config"
	"github.com/patric-chuzhbe/recipebook/internal/db/jsondb"
	"github.com/patric-chuzhbe/recipebook/internal/db/memorystorage"
	"github.com/patric-chuzhbe/recipebook/internal/db/mongodb"
	"github.com/patric-chuzhbe/recipebook/internal/db/postgresdb"
	"github.com/patric-chuzhbe/recipebook/internal/imagecleaner"
	"github.com/patric-chuzhbe/recipebook/internal/imagestore"
	"github.com/patric-chuzhbe/recipebook/internal/ipchecker"
	"github.com/patric-chuzhbe/recipebook/internal/logger"
	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/ratelimit"
	"github.com/patric-chuzhbe/recipebook/internal/router"
	"github.com/patric-chuzhbe/recipebook/internal/service"
	"github.com/patric-chuzhbe/recipebook/internal/upload"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

type recipeKeeper interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error)
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	UpdateRecipe(ctx context.Context, recipe *models.Recipe) error
	DeleteRecipe(ctx context.Context, id string) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error)
	RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error)
}

type storage interface {
	recipeKeeper
	userKeeper
	Ping(ctx context.Context) error
	Close() error
}

type imageStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, name string) error
	http.Handler
	Close() error
}

// authLimiterIdleTTL is how long an idle client keeps its rate limit bucket.
const authLimiterIdleTTL = 10 * time.Minute

// App encapsulates the configuration, HTTP handler, storage backends and the
// background workers needed to run the recipe service.
type App struct {
	cfg              *config.Config
	db               storage
	images           imageStore
	imageCleaner     *imagecleaner.Cleaner
	stopImageCleaner context.CancelFunc
	authLimiter      *ratelimit.KeyedRateLimiter
	httpHandler      http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage and image storage
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.images, err = getImageStore(app.cfg)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	var serviceOptions []service.InitOption
	if app.cfg.ImageCleanupEnabled {
		app.imageCleaner = imagecleaner.New(
			app.images,
			app.cfg.ImageCleanupQueueCapacity,
			app.cfg.ImageCleanupInterval,
		)
		imageCleanerRunCtx, stopImageCleaner := context.WithCancel(context.Background())
		app.stopImageCleaner = stopImageCleaner

		app.imageCleaner.Run(imageCleanerRunCtx)
		app.imageCleaner.ListenErrors(func(err error) {
			logger.Log.Debugln("Error passed from the `app.imageCleaner.ListenErrors()`:", zap.Error(err))
		})
		serviceOptions = append(serviceOptions, service.WithImageCleaner(app.imageCleaner))
	}

	app.authLimiter = ratelimit.New(app.cfg.AuthRateLimitRPS, app.cfg.AuthRateLimitBurst, authLimiterIdleTTL)

	theAuth := auth.New([]byte(app.cfg.JWTSecret), app.cfg.TokenTTL)

	app.httpHandler = router.New(
		service.New(app.db, theAuth, serviceOptions...),
		theAuth,
		upload.New(app.images, app.cfg.MaxUploadSize),
		router.WithCORSAllowedOrigins(app.cfg.CORSAllowedOrigins),
		router.WithAuthLimiter(app.authLimiter.Middleware(checker)),
		router.WithImages(app.images),
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.closeResources()

	case err := <-serverErrCh:
		closeErr := a.closeResources()
		if errors.Is(err, http.ErrServerClosed) {
			return closeErr
		}
		return errors.Join(fmt.Errorf("server error: %w", err), closeErr)
	}
}

func (a *App) closeResources() error {
	a.authLimiter.Stop()

	if a.imageCleaner != nil {
		a.stopImageCleaner()
		a.imageCleaner.Wait()
	}

	return errors.Join(a.images.Close(), a.db.Close())
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.MongoURI != "" {
		return models.StorageTypeMongo
	}

	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypeMongo:
		db, err := mongodb.New(
			context.Background(),
			cfg.MongoURI,
			cfg.MongoDatabase,
			cfg.DBConnectionTimeout,
		)
		if err != nil {
			return nil, err
		}
		return db, nil

	case models.StorageTypePostgresql:
		db, err := postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)
		if err != nil {
			return nil, err
		}
		return db, nil

	case models.StorageTypeFile:
		db, err := jsondb.New(cfg.DBFileName)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	return memorystorage.New()
}

func getImageStore(cfg *config.Config) (imageStore, error) {
	if cfg.S3Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectionTimeout)
		defer cancel()

		store, err := imagestore.NewMinio(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := imagestore.NewLocalDisk(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return store, nil
}
