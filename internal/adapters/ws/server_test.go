package ws_test

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/switchbot"
	"github.com/aretw0/switchbot/internal/adapters/video"
	"github.com/aretw0/switchbot/internal/adapters/ws"
	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/observability"
	"github.com/aretw0/switchbot/pkg/program"
	"github.com/aretw0/switchbot/pkg/session"
)

type askingProgram struct {
	*program.Base
}

func (p *askingProgram) Run(ctx context.Context, bot *switchbot.Bot) error {
	p.Logger.Info("Hello")
	answer, err := p.Ask(ctx, bot, domain.NewDialog("Q", "Continue?", "Yes", "No"))
	if err != nil {
		return err
	}
	p.Logger.Info("Answered", "button", answer)
	<-ctx.Done()
	return ctx.Err()
}

type fakeSerial struct {
	mu      sync.Mutex
	port    string
	presses []domain.Button
	radius  []float64
}

func (f *fakeSerial) ListPorts() ([]string, error) { return []string{"COM1", "COM2"}, nil }

func (f *fakeSerial) Connect(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.port = name
	return nil
}

func (f *fakeSerial) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.port = ""
}

func (f *fakeSerial) Port() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.port, f.port != ""
}

func (f *fakeSerial) Press(_ context.Context, button domain.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presses = append(f.presses, button)
	return nil
}

func (f *fakeSerial) SetJoystick(_ context.Context, _ domain.Stick, _, radius float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radius = append(f.radius, radius)
	return nil
}

type harness struct {
	hub      *ws.Hub
	manager  *session.Manager
	serial   *fakeSerial
	registry *prometheus.Registry
	http     *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	hub := ws.NewHub(ws.WithHubMetrics(metrics))
	handler := observability.NewBroadcastHandler(observability.NewLogBuffer(10), hub, slog.LevelInfo)

	catalog := program.NewCatalog()
	catalog.MustRegister("Asker", func(logger *slog.Logger) program.Program {
		return &askingProgram{Base: program.NewBase(domain.ProgramMetadata{Name: "Asker", Description: "Asks once"}, logger)}
	})
	manager, err := session.NewManager(catalog, &switchbot.Bot{Display: hub},
		session.WithBroadcaster(hub),
		session.WithProgramLogger(func(name string) *slog.Logger {
			return slog.New(handler).With(observability.ProgramKey, name)
		}),
	)
	require.NoError(t, err)

	serial := &fakeSerial{}
	server := ws.NewServer(hub, ws.Deps{
		Sessions: manager,
		Serial:   serial,
		Video:    video.NewConnector(),
		History:  handler,
	}, ws.WithMetrics(metrics, registry), ws.WithVersion("test"))

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = manager.Close(ctx)
	})
	return &harness{hub: hub, manager: manager, serial: serial, registry: registry, http: ts}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type message struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event, id string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "id": id, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// collect reads until every named event has been seen and returns the first
// payload of each. Other events are skipped.
func collect(t *testing.T, conn *websocket.Conn, events ...string) map[string]message {
	t.Helper()
	want := make(map[string]bool, len(events))
	for _, e := range events {
		want[e] = true
	}
	got := make(map[string]message)
	for len(got) < len(want) {
		msg := read(t, conn)
		if want[msg.Event] {
			if _, seen := got[msg.Event]; !seen {
				got[msg.Event] = msg
			}
		}
	}
	return got
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestServer_WelcomeWhenIdle(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	msg := read(t, conn)
	require.Equal(t, domain.EventWelcome, msg.Event)

	welcome := decode[domain.WelcomeMessage](t, msg.Data)
	require.Len(t, welcome.AvailablePrograms, 1)
	assert.Equal(t, "Asker", welcome.AvailablePrograms[0].Name)
	assert.Nil(t, welcome.CurrentProgramName)
	assert.Nil(t, welcome.CurrentDialog)
	assert.Nil(t, welcome.CurrentSerial)
	assert.Equal(t, []string{"COM1", "COM2"}, welcome.AvailableSerial)
	assert.Len(t, welcome.AvailableVideo, video.GenericCameraCount)
	assert.Empty(t, welcome.RecentProgramLogs)
}

func TestServer_ProgramLifecycle(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	read(t, conn) // welcome

	send(t, conn, domain.EventStartProgram, "1", domain.StartProgramMessage{ProgramName: "Asker"})
	got := collect(t, conn,
		domain.ResponseEvent(domain.EventStartProgram),
		domain.EventCurrentProgram,
		domain.EventShowDialog,
	)

	ack := got[domain.ResponseEvent(domain.EventStartProgram)]
	assert.Equal(t, "1", ack.ID)
	assert.True(t, decode[domain.ResultMessage](t, ack.Data).Success)

	current := decode[domain.CurrentProgramMessage](t, got[domain.EventCurrentProgram].Data)
	require.NotNil(t, current.Metadata)
	assert.Equal(t, "Asker", current.Metadata.Name)

	shown := decode[domain.ShowDialogMessage](t, got[domain.EventShowDialog].Data)
	assert.Equal(t, []string{"Yes", "No"}, shown.Dialog.Buttons)

	send(t, conn, domain.EventDialogClosed, "2", domain.DialogClosedMessage{Button: "Yes"})
	got = collect(t, conn, domain.ResponseEvent(domain.EventDialogClosed), domain.EventDialogClosed)
	assert.True(t, decode[domain.ResultMessage](t, got[domain.ResponseEvent(domain.EventDialogClosed)].Data).Success)
	assert.Equal(t, "Yes", decode[domain.DialogClosedMessage](t, got[domain.EventDialogClosed].Data).Button)

	send(t, conn, domain.EventStopProgram, "3", nil)
	got = collect(t, conn, domain.ResponseEvent(domain.EventStopProgram), domain.EventCurrentProgram)
	assert.True(t, decode[domain.ResultMessage](t, got[domain.ResponseEvent(domain.EventStopProgram)].Data).Success)
	assert.Nil(t, decode[domain.CurrentProgramMessage](t, got[domain.EventCurrentProgram].Data).Metadata)
}

func TestServer_WelcomeWhileRunning(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.manager.Start(context.Background(), "Asker", nil))
	require.Eventually(t, func() bool { return h.manager.Snapshot().Dialog != nil }, time.Second, time.Millisecond)

	conn := h.dial(t)
	msg := read(t, conn)
	require.Equal(t, domain.EventWelcome, msg.Event)

	welcome := decode[domain.WelcomeMessage](t, msg.Data)
	require.NotNil(t, welcome.CurrentProgramName)
	assert.Equal(t, "Asker", *welcome.CurrentProgramName)
	require.NotNil(t, welcome.CurrentDialog)
	assert.Equal(t, "Q", welcome.CurrentDialog.Title)
	require.NotEmpty(t, welcome.RecentProgramLogs)
	assert.Contains(t, welcome.RecentProgramLogs[0], " - Asker - INFO - Hello")
}

// joinHook runs once inside the welcome, after the session snapshot was taken
// and before the client is registered.
type joinHook struct {
	inner ws.LogHistory
	once  sync.Once
	hook  func()
}

func (j *joinHook) WithHistory(fn func(lines []string)) {
	j.once.Do(j.hook)
	j.inner.WithHistory(fn)
}

func TestServer_DialogRaisedWhileJoining(t *testing.T) {
	hub := ws.NewHub()
	history := observability.NewBroadcastHandler(observability.NewLogBuffer(10), hub, slog.LevelInfo)

	askNow := make(chan struct{})
	var (
		mu      sync.Mutex
		running *program.Base
	)
	catalog := program.NewCatalog()
	catalog.MustRegister("Gated", func(logger *slog.Logger) program.Program {
		base := program.NewBase(domain.ProgramMetadata{Name: "Gated"}, logger)
		mu.Lock()
		running = base
		mu.Unlock()
		return &gatedProgram{Base: base, askNow: askNow}
	})
	manager, err := session.NewManager(catalog, &switchbot.Bot{Display: hub}, session.WithBroadcaster(hub))
	require.NoError(t, err)

	hooked := &joinHook{inner: history, hook: func() {
		close(askNow)
		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return running.CurrentDialog() != nil
		}, time.Second, time.Millisecond)
	}}
	server := ws.NewServer(hub, ws.Deps{
		Sessions: manager,
		Serial:   &fakeSerial{},
		Video:    video.NewConnector(),
		History:  hooked,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = manager.Close(ctx)
	})

	require.NoError(t, manager.Start(context.Background(), "Gated", nil))

	h := &harness{http: ts}
	conn := h.dial(t)
	msg := read(t, conn)
	require.Equal(t, domain.EventWelcome, msg.Event)

	welcome := decode[domain.WelcomeMessage](t, msg.Data)
	require.NotNil(t, welcome.CurrentDialog, "dialog raised during the join must be in the welcome")
	assert.Equal(t, "Late", welcome.CurrentDialog.Title)

	send(t, conn, domain.EventGetRunningProgram, "1", nil)
	got := collect(t, conn, domain.ResponseEvent(domain.EventGetRunningProgram))
	current := decode[domain.CurrentProgramMessage](t, got[domain.ResponseEvent(domain.EventGetRunningProgram)].Data)
	require.NotNil(t, current.CurrentDialog)
	assert.Equal(t, "Late", current.CurrentDialog.Title)
}

type gatedProgram struct {
	*program.Base
	askNow chan struct{}
}

func (p *gatedProgram) Run(ctx context.Context, bot *switchbot.Bot) error {
	select {
	case <-p.askNow:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := p.Ask(ctx, bot, domain.NewDialog("Late", "Raised while a client joins", "Ok"))
	return err
}

func TestServer_AnswerWithoutDialog(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	read(t, conn)

	send(t, conn, domain.EventDialogClosed, "", domain.DialogClosedMessage{Button: "OK"})
	msg := read(t, conn)
	require.Equal(t, domain.ResponseEvent(domain.EventDialogClosed), msg.Event)
	ack := decode[domain.ResultMessage](t, msg.Data)
	assert.False(t, ack.Success)
	assert.Equal(t, domain.KindUser, ack.ErrorKind)
}

func TestServer_StartUnknownProgram(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	read(t, conn)

	send(t, conn, domain.EventStartProgram, "9", domain.StartProgramMessage{ProgramName: "Nope"})
	msg := read(t, conn)
	require.Equal(t, domain.ResponseEvent(domain.EventStartProgram), msg.Event)
	ack := decode[domain.ResultMessage](t, msg.Data)
	assert.False(t, ack.Success)
	assert.Contains(t, ack.ErrorMessage, "program not found")
	assert.Equal(t, session.StateIdle, h.manager.State())
}

func TestServer_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	read(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := read(t, conn)
	assert.Equal(t, domain.EventProtocolError, msg.Event)
	assert.Equal(t, domain.KindProtocol, decode[domain.ResultMessage](t, msg.Data).ErrorKind)

	send(t, conn, "bogus", "7", nil)
	msg = read(t, conn)
	assert.Equal(t, domain.EventProtocolError, msg.Event)
	assert.Equal(t, "7", msg.ID)

	send(t, conn, domain.EventStartProgram, "8", "not an object")
	msg = read(t, conn)
	assert.Equal(t, domain.ResponseEvent(domain.EventStartProgram), msg.Event)
	assert.Equal(t, domain.KindProtocol, decode[domain.ResultMessage](t, msg.Data).ErrorKind)

	send(t, conn, domain.EventGetPrograms, "", nil)
	msg = read(t, conn)
	require.Equal(t, domain.ResponseEvent(domain.EventGetPrograms), msg.Event)
	assert.Len(t, decode[[]domain.ProgramMetadata](t, msg.Data), 1)
}

func TestServer_ManualControl(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	read(t, conn)

	send(t, conn, domain.EventConnectSerial, "", "COM2")
	got := collect(t, conn, domain.ResponseEvent(domain.EventConnectSerial), domain.EventCurrentSerial)
	assert.Equal(t, `"COM2"`, string(got[domain.EventCurrentSerial].Data))

	send(t, conn, domain.EventPressButton, "", "A")
	msg := read(t, conn)
	require.Equal(t, domain.ResponseEvent(domain.EventPressButton), msg.Event)
	assert.True(t, decode[domain.ResultMessage](t, msg.Data).Success)

	send(t, conn, domain.EventMoveJoystick, "", domain.JoystickMessage{Joystick: domain.StickLeft, Angle: 1, Radius: 5})
	msg = read(t, conn)
	require.Equal(t, domain.ResponseEvent(domain.EventMoveJoystick), msg.Event)
	assert.True(t, decode[domain.ResultMessage](t, msg.Data).Success)

	h.serial.mu.Lock()
	defer h.serial.mu.Unlock()
	assert.Equal(t, []domain.Button{domain.ButtonA}, h.serial.presses)
	assert.Equal(t, []float64{1}, h.serial.radius)
}

func TestServer_BroadcastsReachEveryClient(t *testing.T) {
	h := newHarness(t)
	a, b := h.dial(t), h.dial(t)
	read(t, a)
	read(t, b)
	require.Eventually(t, func() bool { return h.hub.Count() == 2 }, time.Second, time.Millisecond)

	send(t, a, domain.EventDisconnectSerial, "", nil)
	msg := read(t, b)
	assert.Equal(t, domain.EventCurrentSerial, msg.Event)
	assert.Equal(t, "null", string(msg.Data))
}

func TestServer_HTTPRoutes(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.http.URL + "/programs")
	require.NoError(t, err)
	var programs []domain.ProgramMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&programs))
	resp.Body.Close()
	require.Len(t, programs, 1)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ := http.NewRequest(http.MethodOptions, h.http.URL+"/programs", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.http.URL + "/info")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, session.StateIdle, info["state"])

	h.dial(t)
	resp, err = http.Get(h.http.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "switchbot_")
}

func TestDownscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 4))
	src.Set(4, 0, color.RGBA{R: 255, A: 255})

	out := ws.Downscale(src, 4)
	assert.Equal(t, image.Rect(0, 0, 2, 1), out.Bounds())
	r, _, _, _ := out.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)

	assert.Same(t, src, ws.Downscale(src, 1))
}
