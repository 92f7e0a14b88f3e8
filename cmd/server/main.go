package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/gosocial/realtime/internal/admission"
	"github.com/gosocial/realtime/internal/api"
	"github.com/gosocial/realtime/internal/calls"
	"github.com/gosocial/realtime/internal/comms"
	"github.com/gosocial/realtime/internal/config"
	"github.com/gosocial/realtime/internal/database"
	"github.com/gosocial/realtime/internal/profiles"
	"github.com/gosocial/realtime/internal/pubsub"
	"github.com/gosocial/realtime/internal/server"
	"github.com/gosocial/realtime/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	redisAddr      string
	signingKey     string
	allowedOrigins stringSliceFlag
	commsURL       string
	commsToken     string
	profilesURL    string
	maxConns       int
	idleTimeout    time.Duration
	callTTL        time.Duration
	clustered      bool
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "redis address")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&commsURL, "comms-url", "http://localhost:5000", "signaling service base URL")
	flag.StringVar(&commsToken, "comms-token", "", "signaling service auth token")
	flag.StringVar(&profilesURL, "profiles-url", "http://localhost:6000", "profile service base URL")
	flag.IntVar(&maxConns, "max-connections", 1000, "maximum concurrent connections")
	flag.DurationVar(&idleTimeout, "idle-timeout", 5*time.Minute, "connection idle timeout")
	flag.DurationVar(&callTTL, "call-ttl", 30*time.Second, "pending call time to live")
	flag.BoolVar(&clustered, "clustered", false, "use redis-backed connection admission")
	flag.Parse()

	logger := log.New(os.Stderr, "[realtime] ", log.LstdFlags)

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:         addr,
		DatabaseDSN:        dsn,
		RedisAddr:          redisAddr,
		Base64Secret:       signingKey,
		AllowedOrigins:     allowedOrigins,
		CommsURL:           commsURL,
		CommsToken:         commsToken,
		ProfilesURL:        profilesURL,
		MaxConnections:     maxConns,
		IdleTimeout:        idleTimeout,
		CallTTL:            callTTL,
		ClusteredAdmission: clustered,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()
	statsProvider := stats.NewPrometheusStats(mux)

	bus := pubsub.NewRedisBus(logger, cfg.RedisAddr)
	defer bus.Close()

	commsClient := comms.NewHTTPClient(cfg.CommsURL, cfg.CommsToken)
	resolver := profiles.NewHTTPResolver(cfg.ProfilesURL)

	registry := server.NewRegistry(logger)
	callService := calls.NewService(logger, db, commsClient, bus, statsProvider, cfg.CallTTL)
	voiceMonitor := calls.NewCommunityVoiceMonitor(logger, commsClient, bus)
	bridge := server.NewUpdateBridge(logger, registry, db, bus, statsProvider, voiceMonitor)

	var pool admission.Pool
	if cfg.ClusteredAdmission {
		poolClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer poolClient.Close()
		pool = admission.NewRedisPool(logger, statsProvider, poolClient, cfg.MaxConnections, cfg.ConnectionIdleTimeout)
	} else {
		pool = admission.NewLocalPool(logger, statsProvider, cfg.MaxConnections, cfg.ConnectionIdleTimeout)
	}

	srv := api.NewApp(mux, logger, registry, callService, resolver, db, pool, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := bridge.Run(ctx); err != nil {
			logger.Println("update bridge:", err)
		}
	}()

	go runEvery(ctx, cfg.AdmissionSweepEvery, func() {
		if err := pool.Sweep(); err != nil {
			logger.Println("admission sweep:", err)
		}
	})
	go runEvery(ctx, cfg.CallExpiryEvery, func() {
		if err := callService.ExpireStale(ctx); err != nil {
			logger.Println("call expiry sweep:", err)
		}
	})
	go runEvery(ctx, cfg.CommunityCheckEvery, func() {
		voiceMonitor.CheckTransitions(ctx)
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer shutdownCancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("shutdown:", err)
	}
}

func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
