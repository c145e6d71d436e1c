package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/oauth2"

	"github.com/mmynk/splitthat/internal/api"
	"github.com/mmynk/splitthat/internal/auth"
	"github.com/mmynk/splitthat/internal/cache"
	"github.com/mmynk/splitthat/internal/config"
	"github.com/mmynk/splitthat/internal/extractor"
	"github.com/mmynk/splitthat/internal/ledger/splitwise"
	"github.com/mmynk/splitthat/internal/middleware"
	"github.com/mmynk/splitthat/internal/publisher"
	"github.com/mmynk/splitthat/internal/service"
	"github.com/mmynk/splitthat/internal/storage/sqlite"
	"github.com/mmynk/splitthat/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", ""), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	kv, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	slog.Info("Cache initialized")

	splitCache := cache.NewSplitCache(kv, store, cfg.CacheTTL)
	receipts := cache.NewReceiptCache(kv, cfg.ReceiptTTL)
	handshakes := cache.NewHandshakes(kv, cfg.Ledger.HandshakeTTL)

	model, err := extractor.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		slog.Error("Failed to initialize extractor", "error", err)
		os.Exit(1)
	}
	ext := extractor.New(model, &extractor.Pdftoppm{DPI: cfg.Gemini.PDFDPI})

	oauthConf := &oauth2.Config{
		ClientID:     cfg.Ledger.ClientID,
		ClientSecret: cfg.Ledger.ClientSecret,
		RedirectURL:  cfg.Ledger.RedirectURL,
		Endpoint:     splitwise.Endpoint,
	}
	ledgerFactory := splitwise.NewFactory(oauthConf, cfg.Ledger.BaseURL)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, store)
	if err != nil {
		slog.Error("Failed to initialize token manager", "error", err)
		os.Exit(1)
	}
	sealer, err := auth.NewSealer(cfg.Auth.CredentialSecret)
	if err != nil {
		slog.Error("Failed to initialize credential sealer", "error", err)
		os.Exit(1)
	}
	login := auth.NewLedgerLogin(oauthConf, handshakes, ledgerFactory, store, tokens, sealer)
	pub := publisher.New(store, splitCache, ledgerFactory)

	authService := service.NewAuthService(login, tokens, store, cfg.Auth.FrontendURL, slog.Default())

	// RequireAuth runs first so the logging interceptor sees the user ID.
	interceptors := connect.WithInterceptors(
		middleware.RequireAuth(tokens, api.AuthServiceBeginLoginProcedure, api.AuthServiceRefreshTokenProcedure),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(api.NewSplitServiceHandler(service.NewSplitService(ext, receipts, pub, splitCache, store, login), interceptors))
	mux.Handle(api.NewAuthServiceHandler(authService, interceptors))
	mux.Handle(api.NewLedgerServiceHandler(service.NewLedgerService(store, login), interceptors))

	mux.Handle(service.CallbackPath, authService.CallbackHandler())
	mux.Handle("/metrics", promhttp.Handler())

	if cfg.StaticPath != "" {
		if err := serveStatic(mux, cfg.StaticPath); err != nil {
			slog.Error("Failed to resolve static path", "error", err)
			os.Exit(1)
		}
	}

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	slog.Info("Connect server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// serveStatic serves the frontend build for every non-RPC path, falling
// back to index.html for client-side routes.
func serveStatic(mux *http.ServeMux, staticPath string) error {
	staticDir, err := filepath.Abs(staticPath)
	if err != nil {
		return err
	}
	slog.Info("Serving static files", "path", staticDir)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/splitthat.v1.") {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}

		http.ServeFile(w, r, filePath)
	})
	return nil
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
