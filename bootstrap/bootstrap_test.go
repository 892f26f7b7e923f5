package bootstrap

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/actorcore/cluster"
	"github.com/najoast/actorcore/config"
	"github.com/najoast/actorcore/core"
	"github.com/najoast/actorcore/node"
	"github.com/najoast/actorcore/uuid"
)

// TestService records the calls made by the lifecycle.
type TestService struct {
	name     string
	log      *[]string
	startErr error
}

func (s *TestService) Name() string { return s.name }

func (s *TestService) Start(ctx context.Context) error {
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s *TestService) Stop(ctx context.Context) error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func (s *TestService) Health(ctx context.Context) (HealthStatus, error) {
	return HealthStatus{State: HealthHealthy}, nil
}

func TestLifecycleOrder(t *testing.T) {
	var log []string
	lm := NewLifecycle(nil)

	require.NoError(t, lm.Register(&TestService{name: "c", log: &log}, "b"))
	require.NoError(t, lm.Register(&TestService{name: "b", log: &log}, "a"))
	require.NoError(t, lm.Register(&TestService{name: "a", log: &log}))
	assert.Error(t, lm.Register(&TestService{name: "a", log: &log}))
	assert.Error(t, lm.Register(nil))
	assert.Equal(t, []string{"a", "b", "c"}, lm.Services())

	require.NoError(t, lm.Start(context.Background()))
	assert.True(t, lm.IsStarted())
	assert.Error(t, lm.Start(context.Background()))

	health := lm.Health(context.Background())
	assert.Equal(t, HealthHealthy, health["b"].State)

	require.NoError(t, lm.Stop(context.Background()))
	assert.False(t, lm.IsStarted())
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)
}

func TestLifecycleStartFailureRollsBack(t *testing.T) {
	var log []string
	lm := NewLifecycle(nil)
	boom := errors.New("boom")

	var events []LifecycleEvent
	lm.AddListener(func(ev LifecycleEvent) { events = append(events, ev) })

	require.NoError(t, lm.Register(&TestService{name: "a", log: &log}))
	require.NoError(t, lm.Register(&TestService{name: "b", log: &log, startErr: boom}, "a"))

	err := lm.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	var appErr *ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "b", appErr.Service)

	assert.Equal(t, []string{"start a", "start b", "stop a"}, log)
	assert.False(t, lm.IsStarted())
	require.NotEmpty(t, events)
	assert.Equal(t, "service.start_failed", events[1].Type)
}

func TestLifecycleDependencyErrors(t *testing.T) {
	var log []string

	lm := NewLifecycle(nil)
	require.NoError(t, lm.Register(&TestService{name: "a", log: &log}, "missing"))
	assert.Error(t, lm.Start(context.Background()))

	lm = NewLifecycle(nil)
	require.NoError(t, lm.Register(&TestService{name: "a", log: &log}, "b"))
	require.NoError(t, lm.Register(&TestService{name: "b", log: &log}, "a"))
	assert.ErrorIs(t, lm.Start(context.Background()), ErrCircularDependency)
	assert.Empty(t, log)
}

func testConfig(host string, pid uint32) *config.Config {
	cfg := config.DefaultConfig()
	cfg.App.Name = "test"
	cfg.Node = config.NodeConfig{Host: uuid.MustParse(host), Process: pid}
	cfg.Actor.ShutdownTimeout = 2 * time.Second
	return cfg
}

type collector struct {
	mu   sync.Mutex
	got  []string
	seen chan struct{}
}

func newCollector() *collector {
	return &collector{seen: make(chan struct{}, 8)}
}

func (c *collector) HandleMessage(ctx context.Context, elem *core.MailboxElement) error {
	c.mu.Lock()
	c.got = append(c.got, string(elem.Content.Data))
	c.mu.Unlock()
	c.seen <- struct{}{}
	return nil
}

func TestApplication(t *testing.T) {
	var logs bytes.Buffer
	app, err := NewApplication(testConfig("cbba341a-6ceb-11ea-bc55-0242ac130003", 1), WithLogOutput(&logs))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), app.Node().Process)
	assert.Equal(t, []string{ServiceActorSystem}, app.Lifecycle().Services())

	require.NoError(t, app.Start(context.Background()))
	assert.Error(t, app.Start(context.Background()))

	c := newCollector()
	ref, err := app.Spawn("collector", c)
	require.NoError(t, err)
	defer ref.Release()

	named := app.System().Registry().GetNamed("collector")
	require.NotNil(t, named)
	assert.True(t, named.Equal(ref))
	named.Release()

	require.True(t, ref.Enqueue(nil, 1, core.NewMessage(core.MessageTypeText, []byte("hi")), app.System()))
	select {
	case <-c.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	health := app.Health(context.Background())
	assert.Equal(t, HealthHealthy, health[ServiceActorSystem].State)
	assert.Equal(t, 1, health[ServiceActorSystem].Data["running"])

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
	assert.Contains(t, logs.String(), "node started")
	assert.Contains(t, logs.String(), "node stopped")
}

func TestApplicationRegisterServicesReportsErrors(t *testing.T) {
	app, err := NewApplication(testConfig("cbba341a-6ceb-11ea-bc55-0242ac130003", 1), WithLogOutput(io.Discard))
	require.NoError(t, err)

	err = app.registerServices()
	assert.Error(t, err, "built-in services are already registered")
	assert.Equal(t, []string{ServiceActorSystem}, app.Lifecycle().Services())

	require.NoError(t, app.Start(context.Background()))
	assert.Error(t, app.registerServices(), "lifecycle already started")
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Actor.DefaultMailboxSize = 0

	_, err := NewApplication(cfg, WithLogOutput(&bytes.Buffer{}))
	assert.ErrorIs(t, err, config.ErrInvalidMailboxSize)
}

func TestApplicationCluster(t *testing.T) {
	lb := cluster.NewLoopback(nil)

	appA, err := NewApplication(testConfig("cbba341a-6ceb-11ea-bc55-0242ac130003", 1), WithLoopback(lb), WithLogOutput(io.Discard))
	require.NoError(t, err)
	appB, err := NewApplication(testConfig("2ee4ded7-69c0-4dd6-876d-02e446b21784", 2), WithLoopback(lb), WithLogOutput(io.Discard))
	require.NoError(t, err)

	require.NoError(t, appA.Start(context.Background()))
	require.NoError(t, appB.Start(context.Background()))

	c := newCollector()
	target, err := appB.Spawn("target", c)
	require.NoError(t, err)
	defer target.Release()

	data, err := core.MarshalRef(appB.System(), target)
	require.NoError(t, err)
	remote, err := core.UnmarshalRef(appA.System(), data)
	require.NoError(t, err)
	defer remote.Release()

	require.True(t, remote.Enqueue(nil, 1, core.NewMessage(core.MessageTypeText, []byte("across")), appA.System()))
	select {
	case <-c.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered across nodes")
	}
	assert.Equal(t, []node.ID{appB.Node()}, appA.Proxies().Nodes())

	require.NoError(t, appB.Shutdown(context.Background()))
	assert.Empty(t, appA.Proxies().Nodes(), "peer proxies are erased when the peer leaves")
	assert.False(t, remote.Enqueue(nil, 2, core.NewMessage(core.MessageTypeText, nil), appA.System()))

	require.NoError(t, appA.Shutdown(context.Background()))
}

func TestApplicationReloadsLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actorcore.yaml")
	write := func(level string) {
		content := "app:\n  name: reload\nnode:\n  host: cbba341a-6ceb-11ea-bc55-0242ac130003\n  process: 5\nlog:\n  level: " + level + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("info")

	app, err := NewApplication(nil, WithConfigFile(path), WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.Equal(t, "reload", app.Config().App.Name)
	assert.Contains(t, app.Lifecycle().Services(), ServiceConfigWatch)

	require.NoError(t, app.Start(context.Background()))
	defer app.Shutdown(context.Background())
	assert.Equal(t, config.LogLevelInfo.SlogLevel(), app.LogLevel().Level())

	write("debug")
	assert.Eventually(t, func() bool {
		return app.LogLevel().Level() == config.LogLevelDebug.SlogLevel()
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, config.LogLevelDebug, app.Config().Log.Level)
}
