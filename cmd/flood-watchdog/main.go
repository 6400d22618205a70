// Command flood-watchdog polls a remote flood sensor over SMS, drives a
// three-color relay lamp, and notifies operators when water is detected or
// the sensor stops answering.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/flood-watchdog/internal/alert"
	"github.com/sweeney/flood-watchdog/internal/light"
	"github.com/sweeney/flood-watchdog/internal/logic"
	"github.com/sweeney/flood-watchdog/internal/modem"
	"github.com/sweeney/flood-watchdog/internal/mqtt"
	"github.com/sweeney/flood-watchdog/internal/relay"
	"github.com/sweeney/flood-watchdog/internal/status"
	"github.com/sweeney/flood-watchdog/internal/web"
)

// Phone numbers come from the environment, not flags, so they stay out of
// process listings.
const (
	envTargetNumber = "FLOOD_TARGET_NUMBER"
	envAlertNumbers = "FLOOD_ALERT_NUMBERS" // JSON array of operator numbers
)

// config bundles everything the daemon needs past flag parsing.
type config struct {
	logic.Config

	Request   string
	Operators []string
	Site      string

	Port string
	Baud int
	Tick time.Duration

	RelayBackend string
	I2CBus       string
	I2CAddr      uint16
	GPIOChip     string
	RedChannel   int
	AmberChannel int
	GreenChannel int
	RedPin       int
	AmberPin     int
	GreenPin     int

	Broker    string
	HTTPAddr  string
	Heartbeat time.Duration

	Retry modem.RetryPolicy
}

func (c config) validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	if c.Request == "" {
		return errors.New("request text must not be empty")
	}
	if len(c.Operators) == 0 {
		return errors.New("at least one operator number is required")
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	if c.RedChannel == c.AmberChannel || c.AmberChannel == c.GreenChannel || c.RedChannel == c.GreenChannel {
		return fmt.Errorf("relay channels must be distinct, got red=%d amber=%d green=%d",
			c.RedChannel, c.AmberChannel, c.GreenChannel)
	}
	return nil
}

func main() {
	port := flag.String("port", "/dev/ttyS0", "Serial port of the GSM modem")
	baud := flag.Int("baud", 19200, "Serial baud rate")
	tick := flag.Duration("tick", 10*time.Second, "Poll sub-interval")
	cycleLength := flag.Int("cycle-length", 12, "Ticks per polling cycle; one request is sent per cycle")
	disconnectTime := flag.Int("disconnect-time", 10, "Minutes without replies before the disconnect alert (multiple of 2)")
	waterTime := flag.Int("water-time", 4, "Minutes of continuous water before the alarm (multiple of 2)")
	request := flag.String("request", "Water?", "Status request text sent to the sensor")
	waterMsg := flag.String("water-msg", "1", "Reply text meaning water detected")
	noWaterMsg := flag.String("no-water-msg", "0", "Reply text meaning no water")
	site := flag.String("site", "XFEL", "Site name used in alert texts")
	relayBackend := flag.String("relay", "i2c", "Relay backend: i2c or gpio")
	i2cBus := flag.String("i2c-bus", "", "I2C bus name (empty selects the first available)")
	i2cAddr := flag.Uint("i2c-addr", relay.DefaultI2CAddr, "I2C address of the relay board")
	gpioChip := flag.String("gpio-chip", "gpiochip0", "GPIO chip for the gpio relay backend")
	redCh := flag.Int("red-relay", relay.DefaultRedChannel, "Relay channel of the red lamp")
	amberCh := flag.Int("amber-relay", relay.DefaultAmberChannel, "Relay channel of the amber lamp")
	greenCh := flag.Int("green-relay", relay.DefaultGreenChannel, "Relay channel of the green lamp")
	redPin := flag.Int("red-pin", 17, "BCM pin of the red lamp (gpio backend)")
	amberPin := flag.Int("amber-pin", 27, "BCM pin of the amber lamp (gpio backend)")
	greenPin := flag.Int("green-pin", 22, "BCM pin of the green lamp (gpio backend)")
	broker := flag.String("broker", "", "MQTT broker address for telemetry (empty to disable)")
	httpAddr := flag.String("http", ":8080", "HTTP status address (empty to disable)")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	connectAttempts := flag.Int("connect-attempts", 0, "Modem connect attempts (0 = retry forever)")
	connectDelay := flag.Duration("connect-delay", 5*time.Second, "Delay between modem connect attempts")

	flag.Parse()

	target, operators, err := readNumbers()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	cfg := config{
		Config: logic.Config{
			TargetNumber:      target,
			WaterText:         *waterMsg,
			NoWaterText:       *noWaterMsg,
			CycleLength:       *cycleLength,
			DisconnectMinutes: *disconnectTime,
			WaterMinutes:      *waterTime,
		},
		Request:      *request,
		Operators:    operators,
		Site:         *site,
		Port:         *port,
		Baud:         *baud,
		Tick:         *tick,
		RelayBackend: *relayBackend,
		I2CBus:       *i2cBus,
		I2CAddr:      uint16(*i2cAddr),
		GPIOChip:     *gpioChip,
		RedChannel:   *redCh,
		AmberChannel: *amberCh,
		GreenChannel: *greenCh,
		RedPin:       *redPin,
		AmberPin:     *amberPin,
		GreenPin:     *greenPin,
		Broker:       *broker,
		HTTPAddr:     *httpAddr,
		Heartbeat:    *heartbeat,
		Retry:        modem.RetryPolicy{MaxAttempts: *connectAttempts, Delay: *connectDelay},
	}

	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// readNumbers reads the sensor and operator phone numbers from the
// environment. The operator list is a JSON array, e.g. ["+44...","+44..."].
func readNumbers() (target string, operators []string, err error) {
	target = os.Getenv(envTargetNumber)
	if target == "" {
		return "", nil, fmt.Errorf("%s must be set", envTargetNumber)
	}
	raw := os.Getenv(envAlertNumbers)
	if raw == "" {
		return "", nil, fmt.Errorf("%s must be set", envAlertNumbers)
	}
	if err := json.Unmarshal([]byte(raw), &operators); err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", envAlertNumbers, err)
	}
	if len(operators) == 0 {
		return "", nil, fmt.Errorf("%s must list at least one operator", envAlertNumbers)
	}
	return target, operators, nil
}

func openRelayBoard(cfg config) (relay.Board, error) {
	switch cfg.RelayBackend {
	case "i2c":
		return relay.NewI2CBoard(cfg.I2CBus, cfg.I2CAddr)
	case "gpio":
		return relay.NewGPIOBoard(cfg.GPIOChip, map[int]int{
			cfg.RedChannel:   cfg.RedPin,
			cfg.AmberChannel: cfg.AmberPin,
			cfg.GreenChannel: cfg.GreenPin,
		})
	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.RelayBackend)
	}
}

func run(cfg config) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tracker, err := logic.NewTracker(cfg.Config)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The relay board is wired directly and assumed present: no retry loop,
	// unlike the modem.
	log.Printf("connecting relay board (%s)", cfg.RelayBackend)
	board, err := openRelayBoard(cfg)
	if err != nil {
		return fmt.Errorf("init relay board: %w", err)
	}

	log.Printf("connecting modem on %s", cfg.Port)
	gateway, err := modem.Dial(cfg.Retry, func() (modem.Gateway, error) {
		return modem.NewSerialGateway(cfg.Port, cfg.Baud)
	})
	if err != nil {
		board.AllOff()
		board.Close()
		return err
	}

	// Scoped shutdown: whatever path exits the loop, the lamp goes dark and
	// the modem is released. Errors here are swallowed, cleanup is
	// best-effort.
	defer shutdown(board, gateway)

	lamp := light.New(board, cfg.RedChannel, cfg.AmberChannel, cfg.GreenChannel)
	if err := lamp.SelfTest(time.Sleep); err != nil {
		log.Printf("lamp self test: %v", err)
	}

	dispatcher := alert.NewDispatcher(gateway, cfg.Operators, cfg.Site)

	startTime := time.Now()
	stat := status.NewTracker(startTime, status.Config{
		TickMs:            cfg.Tick.Milliseconds(),
		CycleLength:       cfg.CycleLength,
		DisconnectMinutes: cfg.DisconnectMinutes,
		WaterMinutes:      cfg.WaterMinutes,
		Site:              cfg.Site,
		TargetNumber:      cfg.TargetNumber,
		Operators:         len(cfg.Operators),
		Broker:            cfg.Broker,
		HTTPAddr:          cfg.HTTPAddr,
	})

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		rp := mqtt.NewRealPublisher(cfg.Broker)
		defer rp.Close()
		publisher = rp
		mqttStatus = rp

		startup := mqtt.SystemEvent{
			Timestamp:  startTime,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(stat.Snapshot(), "STARTUP", ""),
		}
		if err := rp.PublishSystem(startup); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		}
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, stat)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: tick=%v cycle=%d disconnect=%dm water=%dm operators=%d",
		cfg.Tick, cfg.CycleLength, cfg.DisconnectMinutes, cfg.WaterMinutes, len(cfg.Operators))

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		cfg:        cfg,
		gateway:    gateway,
		lamp:       lamp,
		tracker:    tracker,
		alerts:     dispatcher,
		stat:       stat,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	return l.run(ticker.C, sigCh)
}

// shutdown turns the lamp dark and releases both gateways. Called on every
// exit path; failures are logged and swallowed.
func shutdown(board relay.Board, gateway modem.Gateway) {
	log.Printf("shutting down: clearing relays and closing modem")
	if err := board.AllOff(); err != nil {
		log.Printf("shutdown: relays off: %v", err)
	}
	if err := board.Close(); err != nil {
		log.Printf("shutdown: close relay board: %v", err)
	}
	if err := gateway.Close(); err != nil {
		log.Printf("shutdown: close modem: %v", err)
	}
}

// loop bundles the collaborators of the poll loop so tests can assemble it
// from fakes with an injected clock and channels.
type loop struct {
	cfg        config
	gateway    modem.Gateway
	lamp       *light.Controller
	tracker    *logic.Tracker
	alerts     *alert.Dispatcher
	stat       *status.Tracker
	publisher  mqtt.Publisher // nil when telemetry is disabled
	mqttStatus mqtt.ConnectionStatus
	now        func() time.Time
	sleep      func(time.Duration)

	lastHeartbeat time.Time
}

// run drives outer cycles of cfg.CycleLength ticks until a signal arrives.
// The request for a cycle is fully issued before its first drain; replies
// within a drain are processed in arrival order.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	l.lastHeartbeat = l.now()
	l.sendRequest()
	pos := 0

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.publishShutdown(s)
			return nil

		case <-tick:
			t := l.now()

			msgs, err := l.gateway.Drain()
			if err != nil {
				l.gatewayFault("checking for new messages", err)
				msgs = nil
			}
			if len(msgs) == 0 {
				l.tracker.TickNoReply()
			}
			for _, m := range msgs {
				l.handleReply(m, t)
			}

			pos++
			if pos >= l.cfg.CycleLength {
				l.applyEvents(l.tracker.EndCycle(), t)
				pos = 0
				l.sendRequest()
			}

			l.heartbeat(t)
			l.updateStatus()
		}
	}
}

// sendRequest issues the status request that opens an outer cycle. A send
// failure is non-fatal and does not touch the escalation state: only inbound
// replies drive it. The cycle still begins, so a sensor that answers anyway
// is accounted normally.
func (l *loop) sendRequest() {
	if err := l.gateway.Send(l.cfg.TargetNumber, l.cfg.Request); err != nil {
		l.gatewayFault(fmt.Sprintf("sending %q to %s", l.cfg.Request, l.cfg.TargetNumber), err)
	} else {
		log.Printf("sent status request to %s", l.cfg.TargetNumber)
	}
	l.tracker.BeginCycle()
}

func (l *loop) handleReply(m modem.Message, t time.Time) {
	events, err := l.tracker.HandleReply(m.Number, m.Text)
	switch {
	case errors.Is(err, logic.ErrUnknownSender):
		log.Printf("ignoring message from unknown number %s", m.Number)
	case errors.Is(err, logic.ErrUnknownText):
		log.Printf("unknown message %q from sensor", m.Text)
	}
	l.applyEvents(events, t)
}

// applyEvents logs each event and applies its side effects: lamp directive,
// operator alert, telemetry.
func (l *loop) applyEvents(events []logic.Event, t time.Time) {
	for _, e := range events {
		l.logEvent(e)

		if e.Indicator != "" {
			if err := l.lamp.Set(e.Indicator); err != nil {
				log.Printf("lamp: %v", err)
			}
		}
		if e.Alert {
			sent := l.alerts.Dispatch(e)
			log.Printf("alert %s delivered to %d/%d operators", e.Type, sent, len(l.cfg.Operators))
		}
		if l.publisher != nil {
			if err := l.publisher.Publish(mqtt.WatchdogEvent{Timestamp: t, Event: e}); err != nil {
				log.Printf("mqtt publish error: %v", err)
			}
		}
	}
}

func (l *loop) logEvent(e logic.Event) {
	switch e.Type {
	case logic.EventAllClear:
		log.Printf("received %q, turning green light on", l.cfg.NoWaterText)
	case logic.EventWaterProgress:
		log.Printf("water has been detected for %dm, will alert others at %dm",
			e.WaterStreak*logic.MinutesPerCycle, l.cfg.WaterMinutes)
	case logic.EventWaterDetected:
		log.Printf("water has been detected for the past %dm, turning red light on",
			e.WaterStreak*logic.MinutesPerCycle)
	case logic.EventWaterRemoved:
		log.Printf("water no longer detected, turning green light on")
	case logic.EventMissedCycle:
		log.Printf("no answer received in the last %dm", e.MissingCycles*logic.MinutesPerCycle)
	case logic.EventSignalLost:
		log.Printf("no answer received in the last %dm, turning amber light on",
			e.MissingCycles*logic.MinutesPerCycle)
	case logic.EventSignalRestored:
		log.Printf("connection to the sensor restored")
	default:
		log.Printf("event %s", e.Type)
	}
}

// gatewayFault logs a non-fatal modem fault the way an operator reading the
// console expects: what was being attempted, the error, the signal strength
// if the modem can still report it, and a short amber blink at the cabinet.
func (l *loop) gatewayFault(activity string, err error) {
	log.Printf("error while %s: %v", activity, err)
	if sr, ok := l.gateway.(modem.SignalReporter); ok {
		if rssi, serr := sr.SignalStrength(); serr == nil {
			log.Printf("signal strength: %d/31", rssi)
		} else {
			log.Printf("unable to read signal strength: %v", serr)
		}
	}
	if ferr := l.lamp.FaultFlash(l.sleep); ferr != nil {
		log.Printf("lamp: %v", ferr)
	}
}

func (l *loop) heartbeat(t time.Time) {
	if l.cfg.Heartbeat <= 0 || t.Sub(l.lastHeartbeat) < l.cfg.Heartbeat {
		return
	}
	l.lastHeartbeat = t
	l.updateStatus()

	snap := l.stat.Snapshot()
	log.Printf("heartbeat: uptime=%v indicator=%s replies=%d missed=%d",
		snap.Uptime().Truncate(time.Second), snap.Indicator,
		snap.Counts.Replies, snap.Counts.MissedCycles)

	if l.publisher == nil {
		return
	}
	hb := mqtt.SystemEvent{
		Timestamp:  t,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := l.publisher.PublishSystem(hb); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

func (l *loop) updateStatus() {
	l.stat.Update(status.Sample{
		Indicator:     l.tracker.Indicator(),
		Connected:     l.tracker.Connected(),
		Wet:           l.tracker.Wet(),
		AwaitingReply: l.tracker.AwaitingReply(),
		WaterStreak:   l.tracker.WaterStreak(),
		MissingCycles: l.tracker.MissingCycles(),
		Counts:        l.tracker.CountersSnapshot(),
	})
	if l.mqttStatus != nil {
		l.stat.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
}

func (l *loop) publishShutdown(s os.Signal) {
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	if l.publisher == nil {
		return
	}
	l.updateStatus()
	event := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(l.stat.Snapshot(), "SHUTDOWN", signalName),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}
