package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/najoast/actorcore/cluster"
	"github.com/najoast/actorcore/config"
	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
)

// Service names registered by the application
const (
	ServiceActorSystem = "actor-system"
	ServiceCluster     = "cluster"
	ServiceConfigWatch = "config-watcher"
)

// Application is one node: an actor system built from configuration,
// optionally connected to peers and reloading its configuration.
type Application struct {
	configFile string
	logOutput  io.Writer
	closeLog   func() error

	cfgMu sync.RWMutex
	cfg   *config.Config

	logger *slog.Logger
	level  *slog.LevelVar

	system    *core.System
	loopback  *cluster.Loopback
	lifecycle *Lifecycle

	proxiesMu sync.RWMutex
	proxies   *cluster.ProxyRegistry

	runMu   sync.Mutex
	running bool
}

// Option configures an Application.
type Option func(*Application)

// WithConfigFile loads the configuration from path and reloads it when the
// file changes.
func WithConfigFile(path string) Option {
	return func(app *Application) {
		app.configFile = path
	}
}

// WithLogOutput sends logs to w instead of the configured output.
func WithLogOutput(w io.Writer) Option {
	return func(app *Application) {
		app.logOutput = w
	}
}

// WithLoopback connects the node to the other nodes attached to lb.
func WithLoopback(lb *cluster.Loopback) Option {
	return func(app *Application) {
		app.loopback = lb
	}
}

// NewApplication builds a node. A nil cfg is loaded from the config file
// option, or discovered with config.Loader.AutoLoad.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	app := &Application{closeLog: func() error { return nil }}
	for _, opt := range opts {
		opt(app)
	}

	if cfg == nil {
		var err error
		loader := config.NewLoader()
		if app.configFile != "" {
			cfg, err = loader.LoadFromFile(app.configFile)
		} else {
			cfg, err = loader.AutoLoad()
		}
		if err != nil {
			return nil, &ApplicationError{Operation: "load config", Err: err}
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, &ApplicationError{Operation: "validate config", Err: err}
	}
	app.cfg = cfg

	if app.logOutput == nil {
		w, closeFn, err := cfg.Log.OpenOutput()
		if err != nil {
			return nil, &ApplicationError{Operation: "open log", Err: err}
		}
		app.logOutput, app.closeLog = w, closeFn
	}
	app.level = new(slog.LevelVar)
	app.logger = cfg.Log.NewLogger(app.logOutput, app.level).With("app", cfg.App.Name)

	nid, err := cfg.Node.ID()
	if err != nil {
		app.closeLog()
		return nil, &ApplicationError{Operation: "node id", Err: err}
	}

	sysOpts := append(cfg.Actor.SystemOptions(), core.WithLogger(app.logger))
	app.system = core.NewSystem(nid, sysOpts...)

	app.lifecycle = NewLifecycle(app.logger)
	if err := app.registerServices(); err != nil {
		app.closeLog()
		return nil, &ApplicationError{Operation: "register services", Err: err}
	}

	return app, nil
}

// registerServices adds the built-in services to the lifecycle.
func (app *Application) registerServices() error {
	if err := app.lifecycle.Register(&systemService{app: app}); err != nil {
		return err
	}
	if app.loopback != nil {
		if err := app.lifecycle.Register(&clusterService{app: app}, ServiceActorSystem); err != nil {
			return err
		}
	}
	if app.configFile != "" {
		if err := app.lifecycle.Register(&watcherService{app: app}); err != nil {
			return err
		}
	}
	return nil
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.cfgMu.RLock()
	defer app.cfgMu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger {
	return app.logger
}

// LogLevel returns the level variable controlling the logger.
func (app *Application) LogLevel() *slog.LevelVar {
	return app.level
}

// Node returns the node identity.
func (app *Application) Node() node.ID {
	return app.system.Node()
}

// System returns the actor system.
func (app *Application) System() *core.System {
	return app.system
}

// Proxies returns the proxy registry, or nil while the node is not
// connected.
func (app *Application) Proxies() *cluster.ProxyRegistry {
	app.proxiesMu.RLock()
	defer app.proxiesMu.RUnlock()
	return app.proxies
}

// Lifecycle returns the lifecycle manager. Services registered before Start
// run alongside the built-in ones.
func (app *Application) Lifecycle() *Lifecycle {
	return app.lifecycle
}

// Spawn starts an actor with the configured defaults and registers it
// under name. The returned reference is owned by the caller.
func (app *Application) Spawn(name string, handler core.MessageHandler) (*core.StrongRef, error) {
	ref, err := app.system.Spawn(handler, app.Config().Actor.Options(name))
	if err != nil {
		return nil, err
	}
	if name != "" {
		if err := app.system.Registry().PutNamed(name, ref); err != nil {
			ref.Release()
			return nil, err
		}
	}
	return ref, nil
}

// Start starts all services.
func (app *Application) Start(ctx context.Context) error {
	app.runMu.Lock()
	defer app.runMu.Unlock()

	if app.running {
		return errors.New("application is already running")
	}
	if err := app.lifecycle.Start(ctx); err != nil {
		return err
	}
	app.running = true
	app.logger.Info("node started", "node", app.Node().String(), "environment", app.Config().App.Environment)
	return nil
}

// Shutdown stops all services and closes the log output.
func (app *Application) Shutdown(ctx context.Context) error {
	app.runMu.Lock()
	defer app.runMu.Unlock()

	if !app.running {
		return nil
	}
	app.running = false

	err := app.lifecycle.Stop(ctx)
	app.logger.Info("node stopped", "node", app.Node().String())
	if cerr := app.closeLog(); err == nil {
		err = cerr
	}
	return err
}

// Run starts the application and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		app.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		app.logger.Info("context done, shutting down")
	}

	return app.Shutdown(context.Background())
}

// Health returns the health of all services.
func (app *Application) Health(ctx context.Context) map[string]HealthStatus {
	return app.lifecycle.Health(ctx)
}

// applyConfig takes over the settings that can change at runtime.
func (app *Application) applyConfig(oldConfig, newConfig *config.Config) {
	app.cfgMu.Lock()
	app.cfg = newConfig
	app.cfgMu.Unlock()

	if oldConfig.Log.Level != newConfig.Log.Level {
		app.level.Set(newConfig.Log.Level.SlogLevel())
		app.logger.Info("log level changed", "from", oldConfig.Log.Level, "to", newConfig.Log.Level)
	}
}

// systemService owns the actor system.
type systemService struct {
	app *Application
}

func (s *systemService) Name() string {
	return ServiceActorSystem
}

func (s *systemService) Start(ctx context.Context) error {
	return nil
}

func (s *systemService) Stop(ctx context.Context) error {
	if timeout := s.app.Config().Actor.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.app.system.Shutdown(ctx)
}

func (s *systemService) Health(ctx context.Context) (HealthStatus, error) {
	stats := s.app.system.Stats()
	return HealthStatus{
		State:   HealthHealthy,
		Message: "actor system running",
		Data: map[string]interface{}{
			"spawned":   stats.Spawned,
			"destroyed": stats.Destroyed,
			"running":   stats.Running,
		},
	}, nil
}

// clusterService attaches the node to the loopback transport.
type clusterService struct {
	app *Application
}

func (s *clusterService) Name() string {
	return ServiceCluster
}

func (s *clusterService) Start(ctx context.Context) error {
	proxies, err := cluster.Connect(s.app.loopback, s.app.system)
	if err != nil {
		return err
	}
	s.app.proxiesMu.Lock()
	s.app.proxies = proxies
	s.app.proxiesMu.Unlock()
	return nil
}

func (s *clusterService) Stop(ctx context.Context) error {
	s.app.loopback.Detach(s.app.Node())
	if proxies := s.app.Proxies(); proxies != nil {
		proxies.Clear()
	}
	return nil
}

func (s *clusterService) Health(ctx context.Context) (HealthStatus, error) {
	proxies := s.app.Proxies()
	if proxies == nil {
		return HealthStatus{State: HealthStopped, Message: "not connected"}, nil
	}
	return HealthStatus{
		State:   HealthHealthy,
		Message: "connected",
		Data: map[string]interface{}{
			"peers":     len(proxies.Nodes()),
			"forwarded": s.app.loopback.Statistics().MessagesForwarded,
		},
	}, nil
}

// watcherService reloads the configuration file.
type watcherService struct {
	app     *Application
	watcher *config.Watcher
}

func (s *watcherService) Name() string {
	return ServiceConfigWatch
}

func (s *watcherService) Start(ctx context.Context) error {
	watcher, err := config.NewWatcher(s.app.configFile, config.NewLoader(), s.app.logger)
	if err != nil {
		return err
	}
	watcher.OnConfigChange(s.app.applyConfig)
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}
	s.watcher = watcher
	return nil
}

func (s *watcherService) Stop(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Stop()
	s.watcher = nil
	return err
}

func (s *watcherService) Health(ctx context.Context) (HealthStatus, error) {
	if s.watcher == nil {
		return HealthStatus{State: HealthStopped}, nil
	}
	return HealthStatus{State: HealthHealthy, Message: "watching " + s.app.configFile}, nil
}
