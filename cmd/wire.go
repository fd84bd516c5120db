package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	authadapter "github.com/bnema/dnd-campaign-cli/internal/adapters/auth"
	"github.com/bnema/dnd-campaign-cli/internal/adapters/backend"
	"github.com/bnema/dnd-campaign-cli/internal/adapters/config"
	chainstore "github.com/bnema/dnd-campaign-cli/internal/adapters/credentials/chain"
	filestore "github.com/bnema/dnd-campaign-cli/internal/adapters/credentials/file"
	outboxrender "github.com/bnema/dnd-campaign-cli/internal/adapters/render/outbox"
	"github.com/bnema/dnd-campaign-cli/internal/adapters/storage/sqlite"
	"github.com/bnema/dnd-campaign-cli/internal/adapters/ws"
	"github.com/bnema/dnd-campaign-cli/internal/application"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
	"github.com/bnema/dnd-campaign-cli/internal/logging"
	"github.com/bnema/dnd-campaign-cli/internal/ports"
	"github.com/bnema/dnd-campaign-cli/internal/realtime"
)

const (
	wireAnnotation = "dnd/wire"
	wireNone       = "none"
	wireConfig     = "config"
	wireFull       = "full"
)

var errNotLoggedIn = errors.New("not logged in; run `dnd login` first")

type globalOptions struct {
	configPath string
	verbose    bool
}

type app struct {
	opts   globalOptions
	cfg    config.Config
	logger *slog.Logger

	tokens     *application.TokenStore
	authAPI    authadapter.API
	client     *backend.Client
	campaigns  *backend.CampaignsAPI
	store      *sqlite.Store
	monitor    *application.ConnectivityMonitor
	creation   *application.CreationService
	syncEngine *application.SyncEngine

	outboxRenderer func([]domain.PendingAction, outboxrender.RenderOptions) (string, error)
	now            func() time.Time
}

// wireLevelFor walks up to the first command that says how much it needs.
func wireLevelFor(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if level, ok := c.Annotations[wireAnnotation]; ok {
			return level
		}
	}
	return wireFull
}

func (a *app) wire(ctx context.Context, level string, stderr io.Writer) error {
	if level == wireNone {
		return nil
	}

	cfg, err := config.Load(viper.New(), a.opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.now = time.Now

	logger, err := logging.New(stderr, logging.Options{Level: cfg.Log.Level, Verbose: a.opts.verbose})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	a.logger = logger

	if level == wireConfig {
		return nil
	}

	secrets, err := newSecretStore(cfg)
	if err != nil {
		return err
	}
	a.tokens = application.NewTokenStore(secrets)
	if err := a.tokens.Load(ctx); err != nil {
		return fmt.Errorf("load saved session: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Backend.Timeout}
	a.authAPI = authadapter.API{BaseURL: cfg.Backend.URL, HTTPClient: httpClient}

	a.client, err = backend.NewClient(backend.ClientConfig{
		BaseURL:    cfg.Backend.URL,
		HTTPClient: httpClient,
		Logger:     logger,
	}, a.tokens, a.authAPI)
	if err != nil {
		return fmt.Errorf("wire backend client: %w", err)
	}
	a.campaigns = backend.NewCampaignsAPI(a.client)

	a.store, err = sqlite.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}

	clock := ports.SystemClock{}
	a.monitor = application.NewConnectivityMonitor(a.client, cfg.Sync.ProbeInterval, logger)
	a.creation = application.NewCreationService(a.campaigns, a.store, a.store, a.monitor, clock, logger)
	a.syncEngine = application.NewSyncEngine(a.store, a.campaigns, a.store, clock, logger)
	a.outboxRenderer = outboxrender.Render

	return nil
}

func newSecretStore(cfg config.Config) (ports.SecretStore, error) {
	switch cfg.Credentials.Backend {
	case config.CredentialsBackendFile:
		return filestore.NewStore(cfg.Credentials.Path), nil
	default:
		store, err := chainstore.NewPassWithFileFallback(cfg.Credentials.Path)
		if err != nil {
			return nil, fmt.Errorf("wire credential store chain: %w", err)
		}
		return store, nil
	}
}

// newSessionClient builds a realtime client on its own socket.
func (a *app) newSessionClient() (*realtime.Client, error) {
	transport, err := ws.NewTransport(ws.Config{
		URL:               a.cfg.Backend.SocketURL,
		Logger:            a.logger,
		ReconnectAttempts: a.cfg.Session.ReconnectAttempts,
		ReconnectDelay:    a.cfg.Session.ReconnectDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("wire session transport: %w", err)
	}

	return realtime.NewClient(transport, realtime.Config{
		AuthTimeout:  a.cfg.Session.AuthTimeout,
		DedupeWindow: a.cfg.Session.DedupeWindow,
		Logger:       a.logger,
		TokenSource:  a.tokens.AccessToken,
	}), nil
}

func (a *app) requireLogin() error {
	if a.tokens.AccessToken() == "" {
		return errNotLoggedIn
	}
	return nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil && a.logger != nil {
		a.logger.Debug("close local store", "error", err)
	}
	a.store = nil
}
