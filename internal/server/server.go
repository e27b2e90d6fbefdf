// Package server exposes the application services over a JSON HTTP API with
// websocket chat streaming.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tradesxbt/config"
	"tradesxbt/internal/ai"
	"tradesxbt/internal/coingecko"
	"tradesxbt/internal/metrics"
	"tradesxbt/internal/state"
	"tradesxbt/logger"
)

// Services are the long-lived objects the API delegates to. Prices may be
// nil when no exchange source is configured.
type Services struct {
	Market      *state.MarketService
	Portfolio   *state.PortfolioService
	Alerts      *state.AlertService
	Theme       *state.ThemeService
	Social      *state.SocialService
	Threads     *state.ThreadService
	Preferences *state.PreferenceService
	AI          *ai.Generator
	CoinGecko   *coingecko.Client
	Prices      state.PriceSource
}

// PriceObserver evaluates price alerts against refreshed portfolio prices.
func (s Services) PriceObserver() state.PriceObserver {
	if s.Alerts == nil {
		return nil
	}
	return func(ctx context.Context, prices map[string]float64) {
		s.Alerts.Evaluate(ctx, prices)
	}
}

type Server struct {
	cfg           config.ServerConfig
	appName       string
	svc           Services
	log           *logger.Log
	metricStore   *metricStore
	logStore      *logStore
	metricHandler metrics.MetricHandlerID
	resources     *resourceSampler
	upgrader      websocket.Upgrader
	httpServer    *http.Server
}

// New builds the API server and hooks its log and metric stores into the
// logger and the metric registry. Call Close (or Run) to detach them.
func New(cfg config.ServerConfig, appName string, svc Services, log *logger.Log) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	cfg.Address = normalizeAddress(cfg.Address)

	s := &Server{
		cfg:         cfg,
		appName:     appName,
		svc:         svc,
		log:         log,
		metricStore: newMetricStore(cfg.MetricsHistory),
		logStore:    newLogStore(cfg.LogHistory),
		resources:   newResourceSampler(cfg.MetricsHistory, cfg.ResourceInterval, log),
	}
	s.metricHandler = metrics.RegisterMetricHandler(s.metricStore.handle)
	log.AddHook(s.logStore)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Address reports the normalised listen address.
func (s *Server) Address() string {
	return s.cfg.Address
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	s.resources.start(ctx)
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("server").WithField("address", s.cfg.Address).Info("API server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Close detaches the server from the logger and metric registry.
func (s *Server) Close() {
	metrics.UnregisterMetricHandler(s.metricHandler)
	s.logStore.close()
	s.resources.stop()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies(nil)

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 || contains(s.cfg.CORSOrigins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})
	api.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"metrics": s.metricStore.snapshot()})
	})
	api.GET("/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.resources.samples.snapshot()})
	})

	s.marketRoutes(api)
	s.portfolioRoutes(api)
	s.alertRoutes(api)
	s.socialRoutes(api)
	s.chatRoutes(api)
	s.settingsRoutes(api)
	return router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"app":    s.appName,
		"ai":     s.svc.AI.Available(),
	})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil && parsed.Host != "" {
			addr = parsed.Host
		}
	}

	if strings.HasPrefix(addr, ":") && len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
		return "0.0.0.0" + addr
	}

	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}
	return addr
}
