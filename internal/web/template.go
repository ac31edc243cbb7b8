package web

import (
	"fmt"
	"html/template"
	"time"

	"github.com/sweeney/garage-opener/internal/status"
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
	"since": func(t, now time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return now.Sub(t).Truncate(time.Second).String() + " ago"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Garage Opener</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; padding: 4px 12px; }
</style>
</head>
<body>
<h1>Garage Opener</h1>

<h2>Doors</h2>
<table>
{{range .Doors}}<tr>
<th>{{.ID}}</th>
<td class="{{if .Active}}on{{else}}off{{end}}">{{if .Active}}PULSING{{else}}IDLE{{end}}</td>
<td>{{.Pulses}} pulses, {{.Rejected}} rejected, last {{since .LastPulse $.Now}}</td>
<td><form method="post" action="/doors/{{.ID}}"><button type="submit"{{if .Active}} disabled{{end}}>Activate</button></form></td>
</tr>
{{end}}<tr><th>Indicator</th><td class="{{if .Indicator}}on{{else}}off{{end}}" colspan="3">{{if .Indicator}}ON{{else}}OFF{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>door1={{.Config.Door1Pin}} door2={{.Config.Door2Pin}} indicator={{if lt .Config.IndicatorPin 0}}none{{else}}{{.Config.IndicatorPin}}{{end}}</td></tr>
<tr><th>Pulse</th><td>{{.Config.PulseMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

// pageData flattens the snapshot's derived values for the template.
type pageData struct {
	status.Snapshot
	Uptime    time.Duration
	Indicator bool
}

func newPageData(snap status.Snapshot) pageData {
	return pageData{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Indicator: snap.Indicator(),
	}
}
