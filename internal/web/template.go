package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/door-alerter/internal/logic"
	"github.com/sweeney/door-alerter/internal/status"
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
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"stateClass": func(s logic.DoorState) string {
		switch s {
		case logic.StateOpen:
			return "open"
		case logic.StateClosed:
			return "closed"
		default:
			return "unknown"
		}
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>{{.Config.Device}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: red; font-weight: bold; }
.closed { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>{{.Config.Device}}</h1>

<h2>State</h2>
<table>
<tr><th>Door</th><td id="door-state" class="{{stateClass .Door}}">{{stateOrUnknown (printf "%s" .Door)}}</td></tr>
<tr><th>Ready</th><td>{{if .Polled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Incident</th><td>{{if .IncidentOpen}}open{{else}}none{{end}}</td></tr>
</table>

<h2>Channels</h2>
<table>
<tr><th>Presence</th><td>{{onOff .Config.Presence}}</td></tr>
<tr><th>PagerDuty</th><td>{{onOff .Config.PagerDuty}}</td></tr>
<tr><th>Telegram</th><td>{{onOff .Config.Telegram}}</td></tr>
<tr><th>Webhook</th><td>{{onOff .Config.Webhook}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Openings</th><td>{{.Counts.Openings}}</td></tr>
<tr><th>Closings</th><td>{{.Counts.Closings}}</td></tr>
<tr><th>Suppressed</th><td>{{.Counts.Suppressed}}</td></tr>
<tr><th>Incidents created</th><td>{{.Counts.IncidentsCreated}}</td></tr>
<tr><th>Incidents resolved</th><td>{{.Counts.IncidentsResolved}}</td></tr>
<tr><th>Notification failures</th><td>{{.Counts.NotifyFailures}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .RestartReason}}<tr><th>Last restart</th><td>{{.RestartReason}}</td></tr>{{end}}
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Stealth</th><td>{{onOff .Config.Stealth}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
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
