// eapd is the EAP Authenticator daemon: it hosts Authenticator sessions
// over UDP, exposes Prometheus metrics, and answers status/control
// queries from eapctl over a plain HTTP API.
package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goeap/internal/config"
	"github.com/dantte-lp/goeap/internal/daemon"
	"github.com/dantte-lp/goeap/internal/eap"
	"github.com/dantte-lp/goeap/internal/eap/tlsengine"
	"github.com/dantte-lp/goeap/internal/metrics"
	"github.com/dantte-lp/goeap/internal/transport"
	appversion "github.com/dantte-lp/goeap/internal/version"
)

// shutdownTimeout bounds how long graceful shutdown waits for the HTTP
// servers to drain active connections.
const shutdownTimeout = 10 * time.Second

// sweepInterval is how often the session manager checks for idle sessions
// against its configured idle timeout.
const sweepInterval = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("eapd starting",
		slog.String("version", appversion.Version),
		slog.String("transport_addr", cfg.Transport.Addr),
		slog.String("status_addr", cfg.Status.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	if err := runServers(cfg, collector, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("eapd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("eapd stopped")
	return 0
}

func runServers(
	cfg *config.Config,
	collector *metrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := transport.ListenUDP(ctx, cfg.Transport.Addr, cfg.Transport.RecvBufBytes)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	defer func() {
		if closeErr := listener.Close(); closeErr != nil {
			logger.Warn("close udp listener", slog.String("error", closeErr.Error()))
		}
	}()

	newMux, err := newMultiplexerFactory(cfg, logger)
	if err != nil {
		return fmt.Errorf("configure auth methods: %w", err)
	}

	mgr := daemon.NewManager(listener, newMux, collector, logger)
	statusAPI := daemon.NewStatusAPI(mgr, logger)

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	statusSrv := &http.Server{
		Addr:              cfg.Status.Addr,
		Handler:           statusAPI.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runUDPReceiveLoop(gCtx, listener, mgr, logger)
	})

	g.Go(func() error {
		return runSweepLoop(gCtx, mgr, cfg.Session.IdleTimeout)
	})

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("status server listening", slog.String("addr", cfg.Status.Addr))
		return listenAndServe(gCtx, &lc, statusSrv, cfg.Status.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	startSIGHUPHandler(gCtx, g, configPath, logLevel, logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, statusSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// runUDPReceiveLoop reads datagrams off the UDP listener and hands them to
// the session manager until ctx is cancelled or the socket is closed.
func runUDPReceiveLoop(ctx context.Context, listener *transport.UDPListener, mgr *daemon.Manager, logger *slog.Logger) error {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, addr, err := listener.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("udp read error", slog.String("error", err.Error()))
			continue
		}

		mgr.HandleInbound(addr, append([]byte(nil), buf[:n]...))
	}
}

// runSweepLoop periodically reaps idle and long-terminated sessions.
func runSweepLoop(ctx context.Context, mgr *daemon.Manager, idleTimeout time.Duration) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			mgr.Sweep(idleTimeout)
		}
	}
}

// startSIGHUPHandler registers a goroutine that reloads the dynamic log
// level from the configuration file on SIGHUP. Session state is not
// declarative here (sessions are started on demand via the status API),
// so reload has nothing else to reconcile.
func startSIGHUPHandler(ctx context.Context, g *errgroup.Group, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sigHUP:
				reloadLogLevel(configPath, logLevel, logger)
			}
		}
	})
}

func reloadLogLevel(configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	logger.Info("received SIGHUP, reloading configuration")
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)
}

// newMultiplexerFactory builds the function the session manager calls to
// construct a fresh AuthMultiplexer for each new session, wiring in
// MD5-Challenge (always) and EAP-TLS (when configured).
func newMultiplexerFactory(cfg *config.Config, logger *slog.Logger) (func() *eap.AuthMultiplexer, error) {
	password, err := resolveMD5Password(cfg, logger)
	if err != nil {
		return nil, err
	}

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		tlsConfig, err = buildServerTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("build tls config: %w", err)
		}
	}

	return func() *eap.AuthMultiplexer {
		// EAP-TLS, when configured, is offered first: it cannot be chosen
		// by NAK, whereas a peer that NAKs it can still get MD5-Challenge.
		var methods []eap.AuthMethod
		if tlsConfig != nil {
			methods = append(methods, eap.NewTLSAuthMethod(tlsengine.NewServer(tlsConfig.Clone())))
		}
		methods = append(methods, eap.NewMD5AuthMethod(password))
		return eap.NewAuthMultiplexer(methods...)
	}, nil
}

// resolveMD5Password returns the configured shared secret, or generates
// and logs a random one if none was configured. An empty secret would let
// any peer response digest match, so eapd never silently runs with one.
func resolveMD5Password(cfg *config.Config, logger *slog.Logger) ([]byte, error) {
	if cfg.Auth.Password != "" {
		return []byte(cfg.Auth.Password), nil
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate random md5 password: %w", err)
	}
	password := hex.EncodeToString(raw)

	logger.Warn("no auth.password configured, generated a random MD5-Challenge secret",
		slog.String("password", password),
	)
	return []byte(password), nil
}

// buildServerTLSConfig loads the certificate material named by cfg into a
// server-side *tls.Config for the EAP-TLS method.
func buildServerTLSConfig(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.ClientCAFile != "" {
		pem, err := os.ReadFile(cfg.ClientCAFile)
		if err != nil {
			return nil, fmt.Errorf("read client ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("client ca file contains no usable certificates")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}

// gracefulShutdown shuts down the HTTP servers within shutdownTimeout. The
// UDP listener and session manager get no drain step: the session table
// lives only in memory, so in-flight sessions are lost, and after a
// restart datagrams from their peers are dropped until a new session is
// started for that address.
func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// listenAndServe creates a TCP listener via lc and serves HTTP requests
// until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
