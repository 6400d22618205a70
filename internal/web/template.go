package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/flood-watchdog/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Flood Watchdog{{if .Config.Site}} — {{.Config.Site}}{{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.normal { color: green; font-weight: bold; }
.water { color: red; font-weight: bold; }
.lost { color: orange; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Flood Watchdog{{if .Config.Site}} — {{.Config.Site}}{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Indicator</th><td class="{{if eq (printf "%s" .Indicator) "WATER"}}water{{else if eq (printf "%s" .Indicator) "LOST_SIGNAL"}}lost{{else}}normal{{end}}">{{.Indicator}}</td></tr>
<tr><th>Sensor link</th><td class="{{if .Connected}}connected{{else}}disconnected{{end}}">{{if .Connected}}connected{{else}}lost{{end}}</td></tr>
<tr><th>Water detected</th><td>{{yesno .Wet}}</td></tr>
<tr><th>Awaiting reply</th><td>{{yesno .AwaitingReply}}</td></tr>
<tr><th>Water streak</th><td>{{.WaterStreak}}</td></tr>
<tr><th>Missed cycles</th><td>{{.MissingCycles}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Config.Broker}}{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{else}}disabled{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Replies</th><td>{{.Counts.Replies}}</td></tr>
<tr><th>Water alerts</th><td>{{.Counts.WaterAlerts}}</td></tr>
<tr><th>Water removals</th><td>{{.Counts.Removals}}</td></tr>
<tr><th>Disconnects</th><td>{{.Counts.Disconnects}}</td></tr>
<tr><th>Restores</th><td>{{.Counts.Restores}}</td></tr>
<tr><th>Missed cycles</th><td>{{.Counts.MissedCycles}}</td></tr>
<tr><th>Unknown senders</th><td>{{.Counts.UnknownSenders}}</td></tr>
<tr><th>Unknown texts</th><td>{{.Counts.UnknownTexts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Cycle length</th><td>{{.Config.CycleLength}} ticks</td></tr>
<tr><th>Disconnect after</th><td>{{.Config.DisconnectMinutes}}m</td></tr>
<tr><th>Water after</th><td>{{.Config.WaterMinutes}}m</td></tr>
<tr><th>Operators</th><td>{{.Config.Operators}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
