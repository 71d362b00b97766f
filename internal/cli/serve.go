package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/rongwang/checkin-server/internal/api"
	"github.com/rongwang/checkin-server/internal/clock"
	"github.com/rongwang/checkin-server/internal/config"
	"github.com/rongwang/checkin-server/internal/repository"
	"github.com/rongwang/checkin-server/internal/service"
	"github.com/rongwang/checkin-server/internal/utils"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(rootOpts)
			if port > 0 {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg, newLogger(rootOpts))
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides SERVER_PORT")

	return cmd
}

// app bundles the wired dependencies shared by the commands.
type app struct {
	db      *sqlx.DB
	repo    *repository.SQLRepository
	clock   *clock.SimulatedClock
	service service.Service
}

func openApp(cfg *config.Config, logger *utils.Logger) (*app, error) {
	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}

	// Create repository
	repo := repository.NewSQLRepository(db)

	// The clock reads the simulation setting from the same store
	c := clock.NewSimulatedClock(repo, cfg.CheckIn.Location(), clock.WithLogger(logger.With("component", "clock")))

	// Create service
	svc := service.NewDefaultService(repo, c, service.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		TokenDuration:  cfg.Auth.TokenDuration,
		DefaultEventID: cfg.CheckIn.DefaultEventID,
		Logger:         logger,
	})

	return &app{db: db, repo: repo, clock: c, service: svc}, nil
}

// NewRouter builds the gin engine for svc.
func NewRouter(svc service.Service, jwtSecret string, logger *utils.Logger) *gin.Engine {
	// Create API handler
	handler := api.NewHandler(svc, logger.With("component", "api"))

	// Set up Gin router
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger.With("component", "http")))

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(jwtSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	return router
}

func runServe(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	gin.SetMode(cfg.Server.Mode)

	a, err := openApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           NewRouter(a.service, cfg.Auth.JWTSecret, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"driver", cfg.Database.Driver,
			"default_event_id", cfg.CheckIn.DefaultEventID,
			"timezone", cfg.CheckIn.Location().String(),
			"check_in_date", a.clock.CurrentDate(ctx).String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
