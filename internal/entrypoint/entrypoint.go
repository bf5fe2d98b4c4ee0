package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"library-backend/internal/config"
	"library-backend/internal/database"
	"library-backend/internal/database/books"
	"library-backend/internal/database/borrows"
	"library-backend/internal/database/cards"
	"library-backend/internal/database/reference"
	"library-backend/internal/database/users"
	http_controllers "library-backend/internal/http"
	"library-backend/internal/loans"
	"library-backend/internal/notifier"
	"library-backend/internal/scheduler"
	"library-backend/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	// Wait for interrupt signal to gracefully shutdown the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop scheduler and task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting library backend v%s", version)

	if cfg.Auth.JWTSecret == "" {
		log.Fatalf("JWT_SECRET is not set")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	// Repositories
	userStore := users.NewRepository(db.DB)
	bookStore := books.NewRepository(db.DB)
	borrowStore := borrows.NewRepository(db.DB)
	cardStore := cards.NewRepository(db.DB)
	referenceStore := reference.NewRepository(db.DB)

	// Notifier: SMTP when configured, log-only otherwise
	var reminderNotifier notifier.Notifier
	if cfg.SMTP.Host != "" {
		reminderNotifier = notifier.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		log.Printf("Reminders will be sent through %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		reminderNotifier = notifier.NewLogNotifier()
		log.Printf("SMTP_HOST is not set, reminders will be logged only")
	}

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.Database.Path, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		// Register task queues
		taskClient.Register(
			tasks.NewFineCheckQueue(borrowStore, taskClient, tasks.FineCheckPolicy{
				FinePerDay: cfg.Loans.FinePerDay,
				Interval:   cfg.Loans.EscalationInterval,
			}),
			tasks.NewPruneReturnedQueue(borrowStore),
		)

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Loan lifecycle service
	var escalation loans.EscalationScheduler
	if taskClient != nil {
		escalation = taskClient
	}
	loanService := loans.NewService(borrowStore, userStore, bookStore, escalation, loans.Policy{
		MaxPerUser:      cfg.Loans.MaxPerUser,
		PeriodDays:      cfg.Loans.PeriodDays,
		FinePerDay:      cfg.Loans.FinePerDay,
		EscalationDelay: cfg.Loans.EscalationDelay,
	})

	// Due-soon reminder sweep
	var sweepScheduler *scheduler.DueSoonScheduler
	if cfg.Sweep.Enabled {
		var pruner scheduler.Pruner
		if taskClient != nil {
			pruner = taskClient
		}
		sweepScheduler = scheduler.NewDueSoonScheduler(borrowStore, reminderNotifier, pruner, scheduler.Config{
			Schedule:     cfg.Sweep.Schedule,
			Window:       time.Duration(cfg.Sweep.WindowHours) * time.Hour,
			ReturnedKeep: cfg.Loans.ReturnedKeep,
		})
		if err := sweepScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start due-soon scheduler: %v", err)
		}
	}

	// Build router configuration with all dependencies
	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		LoanService:    loanService,
		UserStore:      userStore,
		BookStore:      bookStore,
		CardStore:      cardStore,
		ReferenceStore: referenceStore,
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenExpiry:    int(cfg.Auth.TokenExpiry.Seconds()),
		BcryptCost:     cfg.Auth.BcryptCost,
		TaskClient:     taskClient,
		ReturnedKeep:   cfg.Loans.ReturnedKeep,
		Version:        version,
	}
	if sweepScheduler != nil {
		routerCfg.Sweeper = sweepScheduler
	}

	router := http_controllers.NewRouter(routerCfg)

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if sweepScheduler != nil {
			sweepScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
