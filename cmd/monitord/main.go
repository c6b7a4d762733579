package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joe-el-khoury/fbzmq/internal/config"
	"github.com/joe-el-khoury/fbzmq/internal/logging"
	"github.com/joe-el-khoury/fbzmq/internal/monitor"
	"github.com/joe-el-khoury/fbzmq/internal/observability"
)

var startedAt = time.Now()

func main() {
	configPath := flag.String("config", "", "path to monitord toml config")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := observability.InitLogger("monitord")
	observability.RegisterMetrics()

	cfg := config.DefaultMonitorConfig()
	if *configPath != "" {
		loaded, err := config.LoadMonitorConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "monitord: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc := monitor.NewService(monitor.ServiceConfig{
		ReplyAddr:    cfg.ReplyAddr,
		PubAddr:      cfg.PubAddr,
		PollInterval: cfg.PollInterval(),
		Pub:          cfg.PubConfig(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(svc.Run)
	g.Go(func() error {
		<-ctx.Done()
		svc.Stop()
		return nil
	})

	admin := newAdminRouter(cfg)
	srv := &http.Server{Addr: cfg.AdminAddr, Handler: admin}
	g.Go(func() error {
		logger.Info().Str("admin_addr", cfg.AdminAddr).Msg("admin surface listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "monitord: %v\n", err)
		os.Exit(1)
	}
}

func newAdminRouter(cfg config.MonitorConfig) *gin.Engine {
	r := gin.New()

	// Middleware: keep it lean
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CorsOrigins,
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": cfg.Name,
			"version": "0.0.1",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
