package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"libraryhub_go/config"
	"libraryhub_go/middleware"
	"libraryhub_go/routes"
	"libraryhub_go/services"
	"libraryhub_go/utils"
	"libraryhub_go/websocket"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	root := &cobra.Command{
		Use:           "libraryhub",
		Short:         "Library Hub backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), adminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the shared connections
func bootstrap() (*config.AppConfig, func(), error) {
	cfg := config.Load()

	if err := middleware.InitLogger(cfg.Server.Mode); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := config.InitDatabase(cfg.Database); err != nil {
		middleware.FlushLogger()
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Redis.Enabled {
		if err := config.InitializeRedis(cfg.Redis); err != nil {
			middleware.WarnLogger("redis unavailable, running without cache, revocation or events", zap.Error(err))
			config.CloseRedis()
			config.RedisClient = nil
		}
	}

	cleanup := func() {
		config.CloseRedis()
		config.CloseDatabase()
		middleware.FlushLogger()
	}
	return cfg, cleanup, nil
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if migrate {
				if err := config.AutoMigrate(config.DB); err != nil {
					return err
				}
			}
			return serve(cfg)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "run schema migrations before serving")
	return cmd
}

func serve(cfg *config.AppConfig) error {
	rules, err := services.LoadRules(cfg.RulesPath)
	if err != nil {
		return err
	}
	loc := cfg.Location()
	db, rdb := config.DB, config.RedisClient

	jwtService := config.NewJWTService(cfg.JWT)
	game := services.NewGamification(rules, loc)

	authService := services.NewAuthService(db, rdb, jwtService)
	bookService := services.NewBookService(db, rdb, rules)
	borrowService := services.NewBorrowService(db, rdb, game)
	studentService := services.NewStudentService(db, rdb)
	recommendationService := services.NewRecommendationService(db, rdb, game)
	leaderboardService := services.NewLeaderboardService(db, rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(authService, rdb)
	go hub.Run(ctx)
	defer hub.Close()
	borrowService.SetNotifier(hub)

	scheduler := services.NewScheduler(db, rdb, bookService, loc)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	loginLimiter := middleware.NewRateLimiter(
		config.GetEnvInt("LOGIN_RATE_PER_MINUTE", 10),
		config.GetEnvInt("LOGIN_RATE_BURST", 5),
	)
	loginLimiter.StartCleanup(10*time.Minute, ctx.Done())

	utils.RegisterValidators()

	r := config.SetupRouter(cfg.Server)
	routes.SetupRoutes(r, &routes.Dependencies{
		Config:         cfg,
		Auth:           authService,
		Books:          bookService,
		Borrow:         borrowService,
		Students:       studentService,
		Recommendation: recommendationService,
		Leaderboard:    leaderboardService,
		Game:           game,
		Hub:            hub,
		Uploader:       utils.NewFileUploader(utils.DefaultUploadConfig(cfg.UploadDir)),
		LoginLimiter:   loginLimiter,
	})

	return config.StartServer(r, cfg.Server)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := config.AutoMigrate(config.DB); err != nil {
				return err
			}
			middleware.InfoLogger("migrations applied")
			return nil
		},
	}
}

func adminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var req services.CreateAdminRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("ADMIN_PASSWORD")
			}
			if req.Name == "" || req.Email == "" || len(req.Password) < 6 {
				return fmt.Errorf("--name, --email and a password of at least 6 characters are required")
			}

			cfg, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			authService := services.NewAuthService(config.DB, config.RedisClient, config.NewJWTService(cfg.JWT))
			created, err := authService.CreateAdmin(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with id %s\n", created.Email, created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&req.Name, "name", "", "display name")
	create.Flags().StringVar(&req.Email, "email", "", "login email")
	create.Flags().StringVar(&req.Password, "password", "", "password (defaults to $ADMIN_PASSWORD)")

	admin.AddCommand(create)
	return admin
}
