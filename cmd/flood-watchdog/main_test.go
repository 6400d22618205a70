package main

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/flood-watchdog/internal/alert"
	"github.com/sweeney/flood-watchdog/internal/light"
	"github.com/sweeney/flood-watchdog/internal/logic"
	"github.com/sweeney/flood-watchdog/internal/modem"
	"github.com/sweeney/flood-watchdog/internal/mqtt"
	"github.com/sweeney/flood-watchdog/internal/relay"
	"github.com/sweeney/flood-watchdog/internal/status"
)

const (
	testTarget    = "+441632960001"
	testOperator  = "+441632960100"
	testOperator2 = "+441632960101"
)

// Short cycles keep the scenarios readable: two ticks per cycle, disconnect
// after two silent cycles, water alarm after two positive replies.
func testLoopConfig() config {
	return config{
		Config: logic.Config{
			TargetNumber:      testTarget,
			WaterText:         "1",
			NoWaterText:       "0",
			CycleLength:       2,
			DisconnectMinutes: 4,
			WaterMinutes:      4,
		},
		Request:      "Water?",
		Operators:    []string{testOperator, testOperator2},
		Site:         "Pump House 3",
		Tick:         10 * time.Second,
		RedChannel:   1,
		AmberChannel: 2,
		GreenChannel: 3,
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// harness assembles a loop from fakes. Script the fakes between newHarness
// and start; assert only after stop has returned.
type harness struct {
	t       *testing.T
	cfg     config
	gw      *modem.FakeGateway
	board   *relay.FakeBoard
	pub     *mqtt.FakePublisher
	tracker *logic.Tracker
	clock   *fakeClock
	tick    chan time.Time
	sig     chan os.Signal
	done    chan error
}

func newHarness(t *testing.T, cfg config, batches ...[]modem.Message) *harness {
	t.Helper()
	tracker, err := logic.NewTracker(cfg.Config)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return &harness{
		t:       t,
		cfg:     cfg,
		gw:      modem.NewFakeGateway(batches...),
		board:   relay.NewFakeBoard(),
		pub:     mqtt.NewFakePublisher(),
		tracker: tracker,
		clock:   &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)},
		tick:    make(chan time.Time),
		sig:     make(chan os.Signal),
		done:    make(chan error, 1),
	}
}

func (h *harness) start() {
	l := &loop{
		cfg:        h.cfg,
		gateway:    h.gw,
		lamp:       light.New(h.board, h.cfg.RedChannel, h.cfg.AmberChannel, h.cfg.GreenChannel),
		tracker:    h.tracker,
		alerts:     alert.NewDispatcher(h.gw, h.cfg.Operators, h.cfg.Site),
		stat:       status.NewTracker(h.clock.Now(), status.Config{Site: h.cfg.Site}),
		publisher:  h.pub,
		mqttStatus: h.pub,
		now:        h.clock.Now,
		sleep:      func(time.Duration) {},
	}
	go func() {
		h.done <- l.run(h.tick, h.sig)
	}()
}

// tickOnce advances the clock by one tick interval and delivers the tick.
// The send returns once the loop has accepted it; the loop re-enters select
// only after processing, so sequential calls never pile up.
func (h *harness) tickOnce() {
	h.clock.Advance(h.cfg.Tick)
	h.tick <- h.clock.Now()
}

func (h *harness) stop() {
	h.t.Helper()
	h.sig <- syscall.SIGTERM
	if err := <-h.done; err != nil {
		h.t.Fatalf("run returned error: %v", err)
	}
}

func countTexts(texts []string, want string) int {
	n := 0
	for _, s := range texts {
		if s == want {
			n++
		}
	}
	return n
}

func hasEvent(events []mqtt.WatchdogEvent, typ logic.EventType) bool {
	for _, e := range events {
		if e.Event.Type == typ {
			return true
		}
	}
	return false
}

func TestLoopSendsRequestEachCycle(t *testing.T) {
	h := newHarness(t, testLoopConfig())
	h.start()
	for i := 0; i < 4; i++ {
		h.tickOnce()
	}
	h.stop()

	// One request up front, then one at each cycle boundary (ticks 2 and 4).
	requests := h.gw.SentTo(testTarget)
	if len(requests) != 3 {
		t.Fatalf("got %d requests, want 3: %v", len(requests), requests)
	}
	for _, r := range requests {
		if r != "Water?" {
			t.Errorf("unexpected request text %q", r)
		}
	}
}

func TestLoopWaterEscalation(t *testing.T) {
	cfg := testLoopConfig()
	h := newHarness(t, cfg,
		[]modem.Message{{Number: testTarget, Text: "1"}}, // cycle 1: first positive
		nil,
		[]modem.Message{{Number: testTarget, Text: "1"}}, // cycle 2: threshold reached
	)
	h.start()
	for i := 0; i < 3; i++ {
		h.tickOnce()
	}
	h.stop()

	if !h.board.States[cfg.RedChannel] {
		t.Error("red lamp should be on after the second positive reply")
	}
	if h.board.States[cfg.GreenChannel] {
		t.Error("green lamp should be off while water is present")
	}
	want := "Water has been detected at Pump House 3 for the past 4m!"
	for _, op := range cfg.Operators {
		if countTexts(h.gw.SentTo(op), want) != 1 {
			t.Errorf("operator %s: alerts sent = %v, want one %q", op, h.gw.SentTo(op), want)
		}
	}
	if !hasEvent(h.pub.Events, logic.EventWaterProgress) {
		t.Error("first positive reply should publish a progress event")
	}
	if !hasEvent(h.pub.Events, logic.EventWaterDetected) {
		t.Error("threshold crossing should publish a detection event")
	}
}

func TestLoopWaterCleared(t *testing.T) {
	cfg := testLoopConfig()
	h := newHarness(t, cfg,
		[]modem.Message{{Number: testTarget, Text: "1"}},
		[]modem.Message{{Number: testTarget, Text: "1"}},
		[]modem.Message{{Number: testTarget, Text: "0"}},
	)
	h.start()
	for i := 0; i < 3; i++ {
		h.tickOnce()
	}
	h.stop()

	if h.board.States[cfg.RedChannel] {
		t.Error("red lamp should be off after the negative reply")
	}
	if !h.board.States[cfg.GreenChannel] {
		t.Error("green lamp should be back on")
	}
	want := "The water is no longer detected at Pump House 3."
	if countTexts(h.gw.SentTo(testOperator), want) != 1 {
		t.Errorf("removal alerts = %v, want one %q", h.gw.SentTo(testOperator), want)
	}
}

func TestLoopDisconnectEscalation(t *testing.T) {
	cfg := testLoopConfig()
	h := newHarness(t, cfg)
	h.start()
	// Three silent cycles; the threshold is two.
	for i := 0; i < 6; i++ {
		h.tickOnce()
	}
	h.stop()

	if !h.board.States[cfg.AmberChannel] {
		t.Error("amber lamp should be on after the disconnect threshold")
	}
	want := "The connection to the flood monitoring system at Pump House 3 has been lost for 4m."
	if n := countTexts(h.gw.SentTo(testOperator), want); n != 1 {
		t.Errorf("disconnect alert sent %d times, want exactly once", n)
	}
	if !hasEvent(h.pub.Events, logic.EventSignalLost) {
		t.Error("signal lost event should be published")
	}
}

func TestLoopRestoreAfterDisconnect(t *testing.T) {
	cfg := testLoopConfig()
	h := newHarness(t, cfg,
		nil, nil, nil, nil, // two silent cycles
		[]modem.Message{{Number: testTarget, Text: "0"}},
	)
	h.start()
	for i := 0; i < 5; i++ {
		h.tickOnce()
	}
	h.stop()

	want := "The connection to the flood monitoring system at Pump House 3 has been restored."
	if countTexts(h.gw.SentTo(testOperator), want) != 1 {
		t.Errorf("restore alerts = %v, want one %q", h.gw.SentTo(testOperator), want)
	}
	if !h.board.States[cfg.GreenChannel] {
		t.Error("green lamp should be on after the all-clear reply")
	}
	if h.board.States[cfg.AmberChannel] {
		t.Error("amber lamp should be off again")
	}
}

func TestLoopIgnoresUnknownSender(t *testing.T) {
	h := newHarness(t, testLoopConfig(),
		[]modem.Message{{Number: "+441632969999", Text: "1"}},
	)
	h.start()
	h.tickOnce()
	h.stop()

	if got := h.tracker.CountersSnapshot().UnknownSenders; got != 1 {
		t.Errorf("UnknownSenders = %d, want 1", got)
	}
	if len(h.pub.Events) != 0 {
		t.Errorf("no events should be published, got %v", h.pub.Events)
	}
	if len(h.board.Ops) != 0 {
		t.Errorf("lamp should be untouched, got ops %v", h.board.Ops)
	}
}

func TestLoopDrainErrorBehavesLikeSilence(t *testing.T) {
	cfg := testLoopConfig()
	h := newHarness(t, cfg)
	h.gw.DrainError = errors.New("modem gone away")
	h.start()
	h.tickOnce()
	h.tickOnce()
	h.stop()

	if got := h.tracker.MissingCycles(); got != 1 {
		t.Errorf("MissingCycles = %d, want 1", got)
	}
	// The fault handler blinks amber on every failed drain.
	if countTexts(h.board.Ops, "on 2") == 0 {
		t.Errorf("expected amber fault blink, got ops %v", h.board.Ops)
	}
	if h.board.States[cfg.AmberChannel] {
		t.Error("amber should be off again after the blink")
	}
}

func TestLoopSendFailureDoesNotAbortCycle(t *testing.T) {
	h := newHarness(t, testLoopConfig())
	h.gw.SendError = errors.New("no carrier")
	h.start()
	h.tickOnce()
	h.tickOnce()
	h.stop()

	if len(h.gw.Sent) != 0 {
		t.Errorf("nothing should have been sent, got %v", h.gw.Sent)
	}
	// The cycle still ran and the silence was accounted.
	if got := h.tracker.MissingCycles(); got != 1 {
		t.Errorf("MissingCycles = %d, want 1", got)
	}
}

func TestLoopHeartbeat(t *testing.T) {
	cfg := testLoopConfig()
	cfg.Heartbeat = 30 * time.Second
	h := newHarness(t, cfg)
	h.start()
	for i := 0; i < 3; i++ {
		h.tickOnce()
	}
	h.stop()

	beats := 0
	for _, e := range h.pub.SystemEvents {
		if e.Event == "HEARTBEAT" {
			beats++
		}
	}
	// 30s elapse on the third 10s tick.
	if beats != 1 {
		t.Errorf("heartbeats = %d, want 1", beats)
	}
}

func TestLoopShutdownPublishesRetainedEvent(t *testing.T) {
	h := newHarness(t, testLoopConfig())
	h.start()
	h.tickOnce()
	h.stop()

	if len(h.pub.SystemEvents) == 0 {
		t.Fatal("expected a shutdown event")
	}
	last := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" {
		t.Errorf("last system event = %q, want SHUTDOWN", last.Event)
	}
	if last.Reason != "SIGTERM" {
		t.Errorf("shutdown reason = %q, want SIGTERM", last.Reason)
	}
	if !last.Retained {
		t.Error("shutdown event should be retained")
	}
}

func TestReadNumbers(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		t.Setenv(envTargetNumber, testTarget)
		t.Setenv(envAlertNumbers, `["+441632960100","+441632960101"]`)
		target, ops, err := readNumbers()
		if err != nil {
			t.Fatalf("readNumbers: %v", err)
		}
		if target != testTarget {
			t.Errorf("target = %q", target)
		}
		if len(ops) != 2 || ops[0] != "+441632960100" {
			t.Errorf("operators = %v", ops)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		t.Setenv(envTargetNumber, "")
		t.Setenv(envAlertNumbers, `["+441632960100"]`)
		if _, _, err := readNumbers(); err == nil {
			t.Error("expected error for missing target number")
		}
	})

	t.Run("missing operators", func(t *testing.T) {
		t.Setenv(envTargetNumber, testTarget)
		t.Setenv(envAlertNumbers, "")
		if _, _, err := readNumbers(); err == nil {
			t.Error("expected error for missing operator list")
		}
	})

	t.Run("bad json", func(t *testing.T) {
		t.Setenv(envTargetNumber, testTarget)
		t.Setenv(envAlertNumbers, "+441632960100")
		if _, _, err := readNumbers(); err == nil {
			t.Error("expected error for non-JSON operator list")
		}
	})

	t.Run("empty list", func(t *testing.T) {
		t.Setenv(envTargetNumber, testTarget)
		t.Setenv(envAlertNumbers, "[]")
		if _, _, err := readNumbers(); err == nil {
			t.Error("expected error for empty operator list")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := testLoopConfig()
	if err := valid.validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*config)
	}{
		{"empty request", func(c *config) { c.Request = "" }},
		{"no operators", func(c *config) { c.Operators = nil }},
		{"zero tick", func(c *config) { c.Tick = 0 }},
		{"duplicate channels", func(c *config) { c.AmberChannel = c.RedChannel }},
		{"odd water time", func(c *config) { c.WaterMinutes = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testLoopConfig()
			tc.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestOpenRelayBoardRejectsUnknownBackend(t *testing.T) {
	cfg := testLoopConfig()
	cfg.RelayBackend = "spi"
	if _, err := openRelayBoard(cfg); err == nil {
		t.Error("expected error for unknown relay backend")
	}
}
