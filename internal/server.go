package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/wodcareer/internal/apply"
	"github.com/2beens/wodcareer/internal/auth"
	"github.com/2beens/wodcareer/internal/catalog"
	"github.com/2beens/wodcareer/internal/config"
	"github.com/2beens/wodcareer/internal/db"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/ledger/memstore"
	"github.com/2beens/wodcareer/internal/ledger/pgstore"
	"github.com/2beens/wodcareer/internal/middleware"
	"github.com/2beens/wodcareer/internal/telemetry/metrics"
	"github.com/2beens/wodcareer/internal/telemetry/tracing"
	"github.com/2beens/wodcareer/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
)

const sessionsCleanupInterval = 8 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	store       ledger.Store
	redisClient *redis.Client
	// sessions resolves the Authorization token, authService is nil on the
	// memory backend without redis
	sessions    auth.Resolver
	authService *auth.Service
	rateLimiter middleware.RequestRateLimiter

	applyService *apply.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
	stopCleanup    context.CancelFunc
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	PostgresUser            string
	PostgresPassword        string
	RedisPassword           string
	HoneycombTracingEnabled bool
	// DevSessions are fixed token -> athlete id sessions, used when redis
	// is not configured
	DevSessions map[string]int
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	s := &Server{
		config:      cfg,
		versionInfo: params.VersionInfo,
	}

	var collectors []prometheus.Collector
	switch cfg.StorageBackend {
	case config.StorageBackendMemory:
		store := memstore.New()
		catalog.Default().SeedMemory(store)
		s.store = store
		log.Warnln("using the in-memory ledger, nothing survives a restart")
	default:
		dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBUser:         params.PostgresUser,
			DBPassword:     params.PostgresPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}

		store := pgstore.NewStore(dbPool, cfg.CapacityCacheSize)
		if err := store.ApplySchema(ctx); err != nil {
			dbPool.Close()
			return nil, err
		}
		stats, err := store.SeedCatalog(ctx, catalog.Default())
		if err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
		log.Debugf("catalog seeded: %+v", stats)

		s.dbPool = dbPool
		s.store = store
		collectors = append(collectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))
	}

	s.promRegistry = metrics.SetupPrometheus(collectors...)
	s.metricsManager = metrics.NewManager("wodcareer", "engine", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	if cfg.RedisHost != "" {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
		rdbStatus := s.redisClient.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}

		s.authService = auth.NewService(auth.DefaultTTL, s.redisClient)
		s.sessions = s.authService
		s.rateLimiter = redis_rate.NewLimiter(s.redisClient)

		cleanupCtx, cancel := context.WithCancel(context.Background())
		s.stopCleanup = cancel
		go s.cleanupSessions(cleanupCtx)
	} else {
		log.Warnln("redis not configured, using static dev sessions and no rate limiting")
		s.sessions = auth.NewStaticResolver(params.DevSessions)
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "wodcareer-engine", s.redisClient)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.otelShutdown = otelShutdown

	s.applyService = apply.NewService(apply.NewServiceParams{
		Store:   s.store,
		Metrics: s.metricsManager,
	})

	return s, nil
}

func (s *Server) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionsCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.authService.ScanAndClean(ctx)
		}
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("engine-router"))

	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")

	applyHandler := apply.NewHandler(s.applyService)
	r.HandleFunc("/athlete/career", applyHandler.HandleCareer).Methods("GET", "OPTIONS").Name("career")
	r.HandleFunc("/athlete/missions", applyHandler.HandleMissions).Methods("GET", "OPTIONS").Name("missions")
	if s.authService != nil {
		r.HandleFunc("/athlete/session", s.handleLogout).Methods("DELETE", "OPTIONS").Name("logout")
	}

	workoutsRouter := r.PathPrefix("/athlete/workouts").Subrouter()
	workoutsRouter.HandleFunc("/{workoutId}/apply-impact", applyHandler.HandleApplyImpact).Methods("POST", "OPTIONS").Name("apply-impact")
	workoutsRouter.HandleFunc("/{workoutId}/result", applyHandler.HandleSubmitResult).Methods("POST", "OPTIONS").Name("submit-result")
	if s.rateLimiter != nil {
		workoutsRouter.Use(middleware.RateLimit(
			s.rateLimiter,
			s.metricsManager,
			"workouts",
			s.config.ApplyRateLimitAllowedPerMin,
		))
	}

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteResponse(w, pkg.ContentType.Text, "not found", http.StatusNotFound)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.sessions, "/health")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins...))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "ok",
		"version": s.versionInfo,
		"storage": s.config.StorageBackend,
	}
	if s.dbPool != nil {
		if err := s.dbPool.Ping(r.Context()); err != nil {
			log.Errorf("health, ping db: %s", err)
			status["status"] = "degraded"
		}
	}
	pkg.WriteJSON(w, status, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	closed, err := s.authService.Close(r.Context(), token)
	if err != nil {
		log.Errorf("logout: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !closed {
		pkg.WriteResponse(w, pkg.ContentType.Text, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"/metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

// close releases the clients, it is safe on a partially built server.
func (s *Server) close() error {
	var err error
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.redisClient != nil {
		if cErr := s.redisClient.Close(); cErr != nil {
			err = multierr.Append(err, fmt.Errorf("close redis client: %w", cErr))
		}
	}
	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}
	return err
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests before the store goes away
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	if s.otelShutdown != nil {
		s.otelShutdown()
		log.Trace("otel shut down ...")
	}

	if err := s.close(); err != nil {
		log.Errorf("shutdown: %s", err)
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
