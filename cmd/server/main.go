// Package main starts the zkkeeper HTTPS server: the pending-request broker,
// the identity vault and the approver endpoints.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/zkkeeper/internal/broker"
	"github.com/atinyakov/zkkeeper/internal/certgen"
	"github.com/atinyakov/zkkeeper/internal/config"
	"github.com/atinyakov/zkkeeper/internal/db"
	"github.com/atinyakov/zkkeeper/internal/logger"
	"github.com/atinyakov/zkkeeper/internal/notify"
	"github.com/atinyakov/zkkeeper/internal/proof"
	"github.com/atinyakov/zkkeeper/internal/registry"
	"github.com/atinyakov/zkkeeper/internal/repository"
	"github.com/atinyakov/zkkeeper/internal/server/handler/http"
	"github.com/atinyakov/zkkeeper/internal/service"
	boltstore "github.com/atinyakov/zkkeeper/internal/storage/bbolt"
	"github.com/atinyakov/zkkeeper/internal/vault"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	historyCleanInterval = time.Hour
	janitorInterval      = time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}

	if err := run(options, log.Log); err != nil {
		log.Log.Fatal("server stopped", zap.Error(err))
	}
}

func run(options *config.Options, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Operation log and approver registry.
	pg, err := db.InitPostgres(ctx, options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer pg.Close()

	// Identity vault.
	store, err := boltstore.Open(options.VaultPath)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	defer store.Close()
	aead, err := vault.NewAEAD([]byte(options.VaultKey))
	if err != nil {
		return err
	}
	identityVault := vault.New(store, aead, zapLogger)

	// Repositories and services.
	historyService := service.NewHistoryService(repository.NewPostgresHistoryRepository(pg), zapLogger)
	approverService := service.NewApproverService(repository.NewPostgresApproverRepository(pg))

	groupRegistry := registry.New(options.RegistryURL, zapLogger)
	identities := service.NewIdentityService(identityVault, historyService, zapLogger)
	groups := service.NewGroupService(identities, groupRegistry, historyService, zapLogger)
	proofs := service.NewZkProofService(identities, identityVault, groupRegistry,
		proof.NewRemoteEngine(options.ProverURL, zapLogger), historyService, zapLogger)

	// Approval notifications.
	notifiers := notify.Multi{notify.NewLog(zapLogger)}
	if options.RedisAddr != "" {
		rdb := notify.NewRedisClient(options.RedisAddr)
		defer rdb.Close()
		notifiers = append(notifiers, notify.NewRedis(rdb, options.RedisChannel))
	}

	b := broker.New(
		&service.Dispatcher{Identities: identities, Groups: groups, Proofs: proofs},
		zapLogger,
		broker.WithTimeout(options.RequestTimeout),
		broker.WithSettledRetention(options.SettledRetention),
		broker.WithNotifier(notifiers),
		broker.WithRecorder(historyService),
	)
	b.StartJanitor(ctx, janitorInterval)
	db.StartHistoryCleaner(ctx, pg, historyCleanInterval, options.HistoryRetention, zapLogger)

	router := http.NewRouter(
		&http.AuthHandler{Approvers: approverService, CertDir: options.CertDir, Log: zapLogger},
		&http.RPCHandler{
			Requests: service.NewRequests(b),
			Trusted:  &service.Trusted{Identities: identities, Groups: groups, Proofs: proofs, History: historyService},
			Log:      zapLogger,
		},
		&http.PendingHandler{Broker: b, Log: zapLogger},
		options.AllowedOrigins,
		zapLogger,
	)

	tlsConfig, err := serverTLS(options.CertDir)
	if err != nil {
		return err
	}
	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
		if err := server.ListenAndServeTLS("", ""); !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		// Callers blocked in /api/rpc only return once the broker closes.
		b.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// serverTLS loads the server pair and the CA approver certificates are
// verified against. Client certificates stay optional at the TLS layer:
// public callers have none, and CertAuth guards the approver routes.
func serverTLS(certDir string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(
		filepath.Join(certDir, certgen.ServerCertFile),
		filepath.Join(certDir, certgen.ServerKeyFile),
	)
	if err != nil {
		return nil, fmt.Errorf("load server TLS cert/key: %w", err)
	}

	caCert, err := os.ReadFile(filepath.Join(certDir, certgen.CACertFile))
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert to pool")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		ClientCAs:    caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
