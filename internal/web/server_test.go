package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/flood-watchdog/internal/logic"
	"github.com/sweeney/flood-watchdog/internal/status"
)

func startServer(t *testing.T, tracker *status.Tracker) (baseURL string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := New("", tracker)
	go srv.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return fmt.Sprintf("http://%s", ln.Addr())
}

func testTracker() *status.Tracker {
	tr := status.NewTracker(time.Now(), status.Config{
		TickMs:            10000,
		CycleLength:       12,
		DisconnectMinutes: 10,
		WaterMinutes:      4,
		Site:              "Pump House 3",
		Operators:         2,
		HTTPAddr:          ":80",
	})
	tr.Update(status.Sample{
		Indicator:   logic.IndicatorWater,
		Connected:   true,
		Wet:         true,
		WaterStreak: 3,
		Counts:      logic.Counters{WaterAlerts: 2},
	})
	return tr
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIndexPage(t *testing.T) {
	base := startServer(t, testTracker())

	code, body := get(t, base+"/")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", code)
	}
	for _, want := range []string{"Flood Watchdog", "Pump House 3", "WATER", "Water streak"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestIndexJSON(t *testing.T) {
	base := startServer(t, testTracker())

	code, body := get(t, base+"/index.json")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", code)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sj.Status.Indicator != "WATER" {
		t.Errorf("indicator: got %q", sj.Status.Indicator)
	}
	if sj.Status.WaterStreak != 3 {
		t.Errorf("water_streak: got %d, want 3", sj.Status.WaterStreak)
	}
	if sj.Status.Counts.WaterAlerts != 2 {
		t.Errorf("water_alerts: got %d, want 2", sj.Status.Counts.WaterAlerts)
	}
}

func TestUnknownPathIs404(t *testing.T) {
	base := startServer(t, testTracker())

	code, _ := get(t, base+"/nope")
	if code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", code)
	}
}
