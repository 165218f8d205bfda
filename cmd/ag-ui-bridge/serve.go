package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"
	"golang.org/x/sync/errgroup"

	"github.com/wdoppenberg/ag-ui/internal/capability"
	"github.com/wdoppenberg/ag-ui/internal/distlock"
	"github.com/wdoppenberg/ag-ui/internal/orchestrator"
	"github.com/wdoppenberg/ag-ui/internal/runneradapter/anthropic"
	"github.com/wdoppenberg/ag-ui/internal/session"
	"github.com/wdoppenberg/ag-ui/internal/session/inmem"
	"github.com/wdoppenberg/ag-ui/internal/session/mongostore"
	"github.com/wdoppenberg/ag-ui/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge HTTP/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cfgFile)
		},
	}
}

func serve(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	logger := telemetry.NewClueLogger()

	var store capability.SessionStore
	var memStore capability.MemoryStore
	if cfg.Mongo.URL != "" {
		client, err := mongo.Connect(mongoopts.Client().ApplyURI(cfg.Mongo.URL))
		if err != nil {
			return err
		}
		defer func() {
			if derr := client.Disconnect(context.Background()); derr != nil {
				logger.Warn(ctx, "mongo disconnect failed", "err", derr)
			}
		}()
		store = mongostore.New(client.Database(cfg.Mongo.Database).Collection("sessions"))
		log.Infof(ctx, "sessions: mongodb (%s)", cfg.Mongo.Database)
	} else {
		mem := inmem.New()
		store = mem
		memStore = mem
		log.Infof(ctx, "sessions: in-memory")
	}

	sessionOpts := []session.Option{
		session.WithTimeout(cfg.SessionTimeout),
		session.WithCleanupInterval(cfg.CleanupInterval),
		session.WithMaxSessionsPerUser(cfg.MaxSessionsPerUser),
		session.WithLogger(logger),
		session.WithMetrics(telemetry.NewClueMetrics()),
		session.WithTracer(telemetry.NewClueTracer()),
	}
	if memStore != nil {
		sessionOpts = append(sessionOpts, session.WithMemoryStore(memStore))
	}
	if cfg.Redis.URL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.URL, Password: cfg.Redis.Password})
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				logger.Warn(ctx, "redis close failed", "err", cerr)
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		sessionOpts = append(sessionOpts, session.WithSweepLock(distlock.NewRedisLocker(rdb)))
		log.Infof(ctx, "sweep lock: redis (%s)", cfg.Redis.URL)
	}

	sessions, err := session.New(store, sessionOpts...)
	if err != nil {
		return err
	}
	defer sessions.Close()

	client, err := anthropic.NewFromAPIKey(cfg.Anthropic.APIKey, anthropic.Options{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temp,
	})
	if err != nil {
		return err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithAgentName(cfg.AgentName),
		orchestrator.WithExecutionTimeout(cfg.ExecutionTimeout),
		orchestrator.WithMaxConcurrent(cfg.MaxConcurrent),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(telemetry.NewClueMetrics()),
		orchestrator.WithTracer(telemetry.NewClueTracer()),
	}
	if cfg.AppName != "" {
		orchOpts = append(orchOpts, orchestrator.WithStaticAppName(cfg.AppName))
	}
	if cfg.Instruction != "" {
		orchOpts = append(orchOpts, orchestrator.WithInstructionProvider(capability.StaticInstruction(cfg.Instruction)))
	}

	orch, err := orchestrator.New(sessions, anthropic.NewFactory(client), orchOpts...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: newRouter(ctx, orch),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof(ctx, "listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case s := <-sig:
			log.Infof(ctx, "received %s, shutting down", s)
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
