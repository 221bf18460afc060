package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	taskAuth "github.com/MrEthical07/taskAuth"
	"github.com/MrEthical07/taskAuth/httpapi"
	promexport "github.com/MrEthical07/taskAuth/metrics/export/prometheus"
	"github.com/MrEthical07/taskAuth/password"
	"github.com/MrEthical07/taskAuth/store/memory"
	"github.com/MrEthical07/taskAuth/store/postgres"
	"github.com/MrEthical07/taskAuth/store/redisstore"
	"github.com/MrEthical07/taskAuth/tasks"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/bcrypt"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (configured by TASKAUTH_* variables)",
		Action: func(c *cli.Context) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			logger := newLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *serverConfig, logger *slog.Logger) error {
	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	stores, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := taskAuth.New().
		WithConfig(engineCfg).
		WithCredentialStore(stores.credentials).
		WithLogger(logger).
		WithAuditSink(taskAuth.NewSlogSink(logger)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	taskService, err := tasks.NewService(tasks.Deps{
		Store:      stores.tasks,
		Guard:      engine.Guard(),
		Authorizer: engine,
		Users:      engine,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Logger:         logger,
		Engine:         engine,
		Tasks:          taskService,
		Metrics:        promexport.NewExporter(engine).Handler(),
		Production:     cfg.isProduction(),
		RequestTimeout: cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.Addr), slog.String("store", cfg.Store))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}

type backends struct {
	credentials taskAuth.CredentialStore
	tasks       tasks.Store
}

// openStore connects the configured backend. Redis holds accounts only;
// tasks fall back to memory there. The returned func releases connections.
func openStore(ctx context.Context, cfg *serverConfig, logger *slog.Logger) (backends, func(), error) {
	switch cfg.Store {
	case storeRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := redisstore.NewStore(client, cfg.RedisPrefix)
		rtt, err := store.Ping(ctx)
		if err != nil {
			_ = client.Close()
			return backends{}, nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("redis connected", slog.String("addr", cfg.RedisAddr), slog.Duration("rtt", rtt))
		logger.Warn("using in-memory task store; tasks are lost on restart")
		return backends{credentials: store, tasks: tasks.NewMemoryStore()}, func() { _ = client.Close() }, nil

	case storePostgres:
		db, err := postgres.Open(ctx, cfg.PGDSN)
		if err != nil {
			return backends{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return backends{}, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return backends{
			credentials: postgres.NewStore(db),
			tasks:       postgres.NewTaskStore(db),
		}, func() { _ = db.Close() }, nil

	default:
		logger.Warn("using in-memory stores; accounts and tasks are lost on restart")
		return backends{credentials: memory.New(), tasks: tasks.NewMemoryStore()}, func() {}, nil
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the Postgres schema migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dsn",
				Usage:    "Postgres connection string",
				EnvVars:  []string{envPrefix + "_PG_DSN"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			db, err := postgres.Open(c.Context, c.String("dsn"))
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(c.Context, db); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "migrations applied")
			return nil
		},
	}
}

func hashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Print a password hash for seeding accounts",
		ArgsUsage: "[password]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "algorithm",
				Usage:   "bcrypt or argon2",
				Value:   taskAuth.PasswordAlgorithmBcrypt,
				EnvVars: []string{envPrefix + "_HASHER"},
			},
			&cli.IntFlag{
				Name:  "cost",
				Usage: "bcrypt cost",
				Value: bcrypt.DefaultCost,
			},
		},
		Action: func(c *cli.Context) error {
			plain := c.Args().First()
			if plain == "" {
				line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("password required as argument or on stdin")
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			hasher, err := newHasher(c.String("algorithm"), c.Int("cost"))
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, hash)
			return nil
		},
	}
}

func newHasher(algorithm string, cost int) (password.Hasher, error) {
	switch algorithm {
	case taskAuth.PasswordAlgorithmBcrypt:
		return password.NewBcrypt(cost)
	case taskAuth.PasswordAlgorithmArgon2:
		return password.NewArgon2(password.DefaultArgon2Config())
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}
