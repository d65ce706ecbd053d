package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"snaudit-backend/internal/costs"
	"snaudit-backend/internal/directory"
	"snaudit-backend/internal/engine"
	"snaudit-backend/internal/llm"
	openai "snaudit-backend/internal/llm/openai"
	"snaudit-backend/internal/queue"
	"snaudit-backend/internal/reports"
	"snaudit-backend/internal/sessions"
	"snaudit-backend/internal/shared/config"
	"snaudit-backend/internal/shared/server"
	"snaudit-backend/internal/shared/storage/db"
	"snaudit-backend/internal/shared/storage/object"
	localstore "snaudit-backend/internal/shared/storage/object/local"
	s3store "snaudit-backend/internal/shared/storage/object/s3"
	"snaudit-backend/internal/snow"
)

// App holds the wired dependencies shared by the API server and the worker.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	Snow   *snow.Client

	DirectoryRepo directory.Repo
	ReportsRepo   reports.Repo
	SessionsRepo  sessions.Repo

	Directory    *directory.Service
	Costs        *costs.Service
	Reports      *reports.Service
	RunProcessor RunProcessor
	Sessions     *sessions.Service

	DirectoryHandler *directory.Handler
	CostsHandler     *costs.Handler
	ReportsHandler   *reports.Handler
	SessionsHandler  *sessions.Handler
}

// RunProcessor allows callers to override report generation for tests.
type RunProcessor interface {
	ProcessRun(ctx context.Context, runID string) error
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	snowClient, err := buildSnow(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Router: nil,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Snow:   snowClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DirectoryHandler: app.DirectoryHandler,
		CostsHandler:     app.CostsHandler,
		ReportsHandler:   app.ReportsHandler,
		SessionsHandler:  app.SessionsHandler,
		Health:           healthStatus(app),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			sqlDB.Close()
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("SN_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func buildSnow(cfg config.Config) (*snow.Client, error) {
	if strings.TrimSpace(cfg.SnowInstanceURL) == "" {
		log.Printf("bootstrap: SN_INSTANCE_URL empty; instance access disabled")
		return nil, nil
	}
	return snow.New(snow.Config{
		BaseURL:      cfg.SnowInstanceURL,
		Username:     cfg.SnowUsername,
		Password:     cfg.SnowPassword,
		AuthMode:     cfg.SnowAuthMode,
		ClientID:     cfg.SnowClientID,
		ClientSecret: cfg.SnowClientSecret,
		TokenURL:     cfg.SnowTokenURL,
		PageSize:     cfg.SnowPageSize,
		Timeout:      cfg.SnowTimeout,
	})
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	var dirRepo directory.Repo
	var runRepo reports.Repo
	var sessRepo sessions.Repo

	if app.DB != nil {
		dirRepo = &directory.PGRepo{DB: app.DB}
		runRepo = &reports.PGRepo{DB: app.DB}
		sessRepo = &sessions.PGRepo{DB: app.DB}
	} else {
		dirRepo = directory.NewMemoryRepo()
		runRepo = reports.NewMemoryRepo()
		sessRepo = sessions.NewMemoryRepo()
	}

	var costsSvc *costs.Service
	if app.DB != nil {
		costsSvc = costs.NewPostgresService(costs.NewPGStore(app.DB))
	} else {
		costsSvc = costs.NewService()
	}

	dirSvc := &directory.Service{Repo: dirRepo}
	if app.Snow != nil {
		dirSvc.Source = app.Snow
	}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			return err
		}
		llmClient = openaiClient
	}

	reportsSvc := &reports.Service{
		Repo:     runRepo,
		Snapshot: dirSvc,
		Costs:    costsSvc,
		Store:    app.Store,
		Queue:    app.Queue,
		LLM:      llmClient,
		Params: engine.Params{
			RoleWeights:    app.Config.RiskRoleWeights,
			ConfBase:       app.Config.ConfBase,
			ConfSlope:      app.Config.ConfSlope,
			ConfSaturation: app.Config.ConfSaturation,
			ConfWasted:     app.Config.ConfWasted,
			ConfUnderutil:  app.Config.ConfUnderutil,
			MinDeptSize:    app.Config.MinDeptSize,
		},
	}

	var executor sessions.Executor
	if app.Snow != nil {
		executor = app.Snow
	}
	sessSvc := sessions.NewService(sessRepo, reportsSvc, dirSvc, executor)
	if app.Config.ExecTimeout > 0 {
		sessSvc.ExecTimeout = app.Config.ExecTimeout
	}

	app.DirectoryRepo = dirRepo
	app.ReportsRepo = runRepo
	app.SessionsRepo = sessRepo
	app.Directory = dirSvc
	app.Costs = costsSvc
	app.Reports = reportsSvc
	app.RunProcessor = reportsSvc
	app.Sessions = sessSvc
	app.DirectoryHandler = directory.NewHandler(dirSvc)
	app.CostsHandler = costs.NewHandler(costsSvc)
	app.ReportsHandler = reports.NewHandler(reportsSvc)
	app.SessionsHandler = sessions.NewHandler(sessSvc)

	if app.DirectoryHandler == nil || app.ReportsHandler == nil || app.SessionsHandler == nil {
		return errors.New("failed to initialize handlers")
	}

	return nil
}

func healthStatus(app *App) server.HealthStatus {
	st := server.HealthStatus{
		Database: "memory",
		Store:    app.Config.ObjectStoreType,
		Queue:    "inline",
		Instance: app.Snow != nil,
	}
	if app.DB != nil {
		st.Database = "postgres"
	}
	if app.Queue != nil {
		st.Queue = "sqs"
	}
	return st
}
