package console

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyops/dronectl/internal/dispatcher"
	"github.com/skyops/dronectl/internal/manual"
	"github.com/skyops/dronectl/internal/pattern"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type fakeController struct {
	mu         sync.Mutex
	calls      []string
	takeoffErr error
}

func (f *fakeController) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) ArmTakeoff(ctx context.Context) error {
	f.record("takeoff")
	return f.takeoffErr
}

func (f *fakeController) Land(ctx context.Context) error {
	f.record("land")
	return nil
}

func (f *fakeController) StartMission(kind pattern.Kind) error {
	f.record(kind.String())
	return nil
}

func (f *fakeController) StartManual(in manual.Input) (<-chan struct{}, error) {
	f.record("manual")
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (f *fakeController) Stop() {
	f.record("stop")
}

type keys struct {
	mu  sync.Mutex
	buf []byte
}

func (k *keys) HasInput() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buf) > 0
}

func (k *keys) ReadChar() byte {
	k.mu.Lock()
	defer k.mu.Unlock()
	b := k.buf[0]
	k.buf = k.buf[1:]
	return b
}

func newTestConsole(t *testing.T, ctrl *fakeController, input string) (*Console, *dispatcher.Dispatcher, *bytes.Buffer) {
	t.Helper()
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	out := &bytes.Buffer{}
	c := New(Dependencies{
		Dispatcher: d,
		Controller: ctrl,
		Input:      &keys{buf: []byte(input)},
		Out:        out,
	})
	return c, d, out
}

func TestRun_DispatchesInOrder(t *testing.T) {
	ctrl := &fakeController{}
	c, _, out := newTestConsole(t, ctrl, "tc1s2xlq")

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"takeoff", "Circle", "Triangle", "Square", "Sine", "stop", "land"}, ctrl.Calls())
	assert.Contains(t, out.String(), "=== Drone Control ===")
	assert.Contains(t, out.String(), "Circle mission requested")
	assert.NotContains(t, out.String(), "mission started")
}

func TestRun_KeysAfterQuitAreIgnored(t *testing.T) {
	ctrl := &fakeController{}
	c, _, _ := newTestConsole(t, ctrl, "qt")

	require.NoError(t, c.Run(context.Background()))

	assert.Empty(t, ctrl.Calls())
}

func TestRun_UpperCaseAndUnknownKeys(t *testing.T) {
	ctrl := &fakeController{}
	c, _, _ := newTestConsole(t, ctrl, "Z?CQ")

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"Circle"}, ctrl.Calls())
}

func TestRun_CtrlCQuits(t *testing.T) {
	ctrl := &fakeController{}
	c, _, _ := newTestConsole(t, ctrl, "\x03c")

	require.NoError(t, c.Run(context.Background()))

	assert.Empty(t, ctrl.Calls())
}

func TestRun_ReportsFailures(t *testing.T) {
	ctrl := &fakeController{takeoffErr: errors.New("arm failed: denied")}
	c, _, out := newTestConsole(t, ctrl, "tq")

	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "takeoff failed: arm failed: denied")
	assert.NotContains(t, out.String(), "Takeoff complete")
}

func TestRun_ManualWaitsForEnd(t *testing.T) {
	ctrl := &fakeController{}
	c, _, out := newTestConsole(t, ctrl, "mq")

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []string{"manual"}, ctrl.Calls())
	assert.Contains(t, out.String(), "Manual control ended")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctrl := &fakeController{}
	c, _, _ := newTestConsole(t, ctrl, "")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err := c.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RegistersRequestKinds(t *testing.T) {
	_, d, _ := newTestConsole(t, &fakeController{}, "")

	cases := map[string]dispatcher.Kind{
		CmdTakeoff:  dispatcher.KindBlocking,
		CmdLand:     dispatcher.KindBlocking,
		CmdManual:   dispatcher.KindBlocking,
		CmdCircle:   dispatcher.KindTask,
		CmdSquare:   dispatcher.KindTask,
		CmdTriangle: dispatcher.KindTask,
		CmdSine:     dispatcher.KindTask,
		CmdStop:     dispatcher.KindPlain,
		CmdQuit:     dispatcher.KindPlain,
	}
	for cmd, want := range cases {
		got, ok := d.Kind(cmd)
		assert.True(t, ok, cmd)
		assert.Equal(t, want, got, cmd)
	}
}

func TestNew_WarnsOnUnboundCommand(t *testing.T) {
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	logs := &bytes.Buffer{}

	New(Dependencies{
		Dispatcher: d,
		Controller: &fakeController{},
		Input:      &keys{},
		Logger:     slog.New(slog.NewTextHandler(logs, nil)),
		Bindings: []Binding{
			{'t', CmdTakeoff, "Takeoff"},
			{'h', "hover", "Hover"},
		},
	})

	assert.Contains(t, logs.String(), "key bound to unknown command")
	assert.Contains(t, logs.String(), "command=hover")
	assert.NotContains(t, logs.String(), "command=takeoff")
}

func TestCommandFor(t *testing.T) {
	c, _, _ := newTestConsole(t, &fakeController{}, "")

	for _, b := range DefaultBindings() {
		cmd, ok := c.CommandFor(b.Key)
		assert.True(t, ok)
		assert.Equal(t, b.Command, cmd)
	}

	cmd, ok := c.CommandFor('L')
	assert.True(t, ok)
	assert.Equal(t, CmdLand, cmd)

	_, ok = c.CommandFor('p')
	assert.False(t, ok)
}
