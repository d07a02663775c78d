package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/museworks/museflow/config"
	core "github.com/museworks/museflow/internal/agent/core"
	"github.com/museworks/museflow/internal/runtime"
	"github.com/museworks/museflow/internal/store"
	"github.com/museworks/museflow/mcp"
	"github.com/museworks/museflow/provider"
)

// Run wires the full service and blocks serving HTTP.
func Run(cfg *appconfig.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		log.Printf("[SERVER] migrate: %v", err)
	}

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return err
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	// The engine's tool sessions are subprocesses of this binary by default.
	toolCmd := cfg.Tools.ServerCommand
	if len(toolCmd) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable for tool server: %w", err)
		}
		toolCmd = []string{exe, "tools"}
	}
	engine := core.NewEngine(
		llm,
		mcp.AgentGateway{G: mcp.NewGateway(toolCmd)},
		store.AgentCheckpoints{S: st},
		cfg.Agent.SnapshotDir,
		cfg.Agent.MaxToolRounds,
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	api := e.Group("/api")
	auth := &AuthHandler{Store: st, Secret: secret}
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(withAuth(secret))
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"user_id": userID(c)})
	})

	projects := api.Group("/projects")
	ph := &ProjectsHandler{Store: st, LLM: llm}
	ph.Register(projects, secret)

	ih := &IdeasHandler{Store: st, LLM: llm}
	ih.Register(projects, api.Group("/ideas"), secret)

	ah := &AgentHandler{Store: st, Engine: engine}
	ah.Register(projects)

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{
			Store:    st,
			Engine:   engine,
			Rdb:      rdb,
			Interval: cfg.Scheduler.Interval,
			LockTTL:  cfg.Scheduler.LockTTL,
			Stop:     make(chan struct{}),
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	if addr == "" {
		addr = ":10001"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

func withAuth(secret []byte) echo.MiddlewareFunc {
	return runtime.EchoAuthMiddleware(secret)
}
