// Package main initializes and starts the dloperOS panel server, setting
// up configuration, logging, YAML storage, services, handlers and TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/blob"
	"github.com/DanielTwine/dloperOS/internal/certgen"
	"github.com/DanielTwine/dloperOS/internal/config"
	"github.com/DanielTwine/dloperOS/internal/containers"
	"github.com/DanielTwine/dloperOS/internal/logger"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/repository"
	"github.com/DanielTwine/dloperOS/internal/security"
	"github.com/DanielTwine/dloperOS/internal/server/handler/http"
	"github.com/DanielTwine/dloperOS/internal/service"
	"github.com/DanielTwine/dloperOS/internal/settings"
	"github.com/DanielTwine/dloperOS/internal/system"
	"github.com/DanielTwine/dloperOS/internal/yamlstore"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 10 * time.Second

// stores holds the YAML collections under the config directory.
type stores struct {
	users *yamlstore.Collection[models.User]
	links *yamlstore.Collection[models.SharedLink]
	sites *yamlstore.Collection[models.Website]
}

func openStores(ctx context.Context, fsys afero.Fs, dir string) (*stores, error) {
	s := &stores{
		users: yamlstore.NewCollection[models.User](fsys, filepath.Join(dir, "users.yaml"), "users"),
		links: yamlstore.NewCollection[models.SharedLink](fsys, filepath.Join(dir, "files.yaml"), "files"),
		sites: yamlstore.NewCollection[models.Website](fsys, filepath.Join(dir, "websites.yaml"), "websites"),
	}
	for _, ensure := range []func(context.Context) error{s.users.EnsureExists, s.links.EnsureExists, s.sites.EnsureExists} {
		if err := ensure(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if err := resetPassword(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "reset-password:", err)
			os.Exit(1)
		}
		return
	}

	// Parse command-line, environment and file configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, options *config.Options, log *zap.Logger) error {
	dataDir, err := filepath.Abs(options.DataDir)
	if err != nil {
		return err
	}
	osFs := afero.NewOsFs()
	for _, dir := range []string{options.ConfigDir, dataDir} {
		if err := osFs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	// Instance settings and the hot-reload watcher.
	settingsStore := settings.NewStore(osFs, filepath.Join(options.ConfigDir, "system.yaml"), log)
	if err := settingsStore.Init(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := settingsStore.Watch(ctx, settings.DefaultDebounce); err != nil {
		log.Warn("settings hot reload disabled", zap.Error(err))
	}

	st, err := openStores(ctx, osFs, options.ConfigDir)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	blobs, err := blob.NewOnDisk(filepath.Join(dataDir, "files"))
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	// Initialize business-logic services.
	authService := service.NewAuthService(repository.NewUserRepository(st.users), security.NewTokenIssuer(settingsStore), log)
	if _, err := authService.EnsureSeedUser(ctx); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	shareService := service.NewShareService(repository.NewLinkRepository(st.links), blobs, log)
	siteService := service.NewSiteService(repository.NewSiteRepository(st.sites),
		afero.NewBasePathFs(osFs, filepath.Join(dataDir, "sites")), filepath.Join(dataDir, "sites"), settingsStore, log)
	backupService := service.NewBackupService(afero.NewBasePathFs(osFs, dataDir), dataDir, log)
	containerService := service.NewContainerService(containers.NewDockerCLI(), log)

	probe := system.HostProbe{}
	netSampler := system.NewNetSampler(probe)
	system.StartNetSampler(ctx, netSampler, system.DefaultSampleInterval, log)
	collector := system.NewCollector(probe, netSampler, "/", log)

	// Create HTTP handlers and the router.
	maxUpload := options.MaxUploadBytes()
	router := http.NewRouter(http.Handlers{
		Auth:     &http.AuthHandler{AuthService: authService, Log: log},
		Shares:   &http.ShareHandler{Shares: shareService, Settings: settingsStore, Log: log, MaxUploadBytes: maxUpload},
		Sites:    &http.SiteHandler{Sites: siteService, Log: log, MaxUploadBytes: maxUpload},
		System:   &http.SystemHandler{Metrics: collector, Log: log},
		Backups:  &http.BackupHandler{Backups: backupService, Log: log},
		Docker:   &http.DockerHandler{Containers: containerService, Log: log},
		Settings: &http.SettingsHandler{Settings: settingsStore, Passwords: authService, Log: log},
	}, authService, log, options.CORSOrigins)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLS {
			created, err := certgen.EnsureSelfSigned(options.CertFile, options.KeyFile, []string{"localhost", "127.0.0.1"})
			if err != nil {
				errCh <- fmt.Errorf("prepare TLS certificate: %w", err)
				return
			}
			if created {
				log.Warn("generated self-signed TLS certificate", zap.String("cert", options.CertFile))
			}
			log.Info("starting HTTPS server", zap.String("addr", options.Addr))
			errCh <- server.ListenAndServeTLS(options.CertFile, options.KeyFile)
			return
		}
		log.Info("starting HTTP server", zap.String("addr", options.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
