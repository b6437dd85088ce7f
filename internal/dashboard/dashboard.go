// Package dashboard renders a periodically-refreshed terminal view of bind
// states and aggregate/per-bind metrics, derived by differencing
// consecutive snapshots over wall time.
package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/smpp-tools/smpploadgen/internal/bindstatus"
	"github.com/smpp-tools/smpploadgen/internal/metrics"
)

// Target describes the static run parameters shown in the banner; it never
// changes over a run.
type Target struct {
	Host            string
	Port            uint16
	SystemID        string
	SystemType      string
	SourceAddr      string
	SourceTON       uint8
	SourceNPI       uint8
	DestinationAddr string
	DestinationTON  uint8
	DestinationNPI  uint8
}

// Dashboard owns the throughput trackers needed to derive TPS between
// renders; one Dashboard instance renders one run's entire lifetime.
type Dashboard struct {
	out     io.Writer
	target  Target
	total   tpsTracker
	perBind []tpsTracker
}

// New returns a Dashboard that writes to out.
func New(out io.Writer, target Target) *Dashboard {
	return &Dashboard{out: out, target: target}
}

// Render clears the screen and prints bind states, the aggregate summary
// and a per-bind line, using reg and m's current snapshots.
func (d *Dashboard) Render(reg *bindstatus.Registry, m *metrics.Metrics) {
	var statuses = reg.Snapshot()
	var snap = m.Snapshot()

	if len(d.perBind) < len(statuses) {
		var grown = make([]tpsTracker, len(statuses))
		copy(grown, d.perBind)
		d.perBind = grown
	}

	fmt.Fprint(d.out, "\x1B[2J\x1B[H")

	var bold = color.New(color.Bold)
	bold.Fprintln(d.out, "SMPP Load Test Dashboard")
	fmt.Fprintln(d.out, dashLine(80))

	fmt.Fprint(d.out, "Bind states: ")
	for idx, st := range statuses {
		fmt.Fprint(d.out, formatState(idx, st), " ")
	}
	fmt.Fprintln(d.out)

	fmt.Fprintf(d.out, "Target: %s:%d | system_id=%s | system_type=%s\n",
		d.target.Host, d.target.Port, d.target.SystemID, orDash(d.target.SystemType))
	fmt.Fprintf(d.out, "Source: %s (TON %d / NPI %d) | Destination: %s (TON %d / NPI %d)\n\n",
		d.target.SourceAddr, d.target.SourceTON, d.target.SourceNPI,
		d.target.DestinationAddr, d.target.DestinationTON, d.target.DestinationNPI)

	var successPct, errorPct float64
	if snap.Attempts > 0 {
		successPct = 100 * float64(snap.Success) / float64(snap.Attempts)
		errorPct = 100 * float64(snap.Error) / float64(snap.Attempts)
	}
	var totalTPS = d.total.tps(snap.Attempts)

	fmt.Fprintf(d.out, "Messages: %s | OK: %s (%.1f%%) | Err: %s (%.1f%%)\n",
		bold.Sprint(snap.Attempts), color.GreenString("%d", snap.Success), successPct,
		color.RedString("%d", snap.Error), errorPct)
	fmt.Fprintf(d.out, "Average latency: %.2f ms | Total TPS: %.1f\n", snap.AvgLatencyMs, totalTPS)

	fmt.Fprintln(d.out, "\nPer-bind stats:")
	for idx, st := range statuses {
		var bs metrics.BindSnapshot
		if idx < len(snap.PerBind) {
			bs = snap.PerBind[idx]
		}
		var tps = d.perBind[idx].tps(bs.Attempts)
		fmt.Fprintf(d.out, "%s -> TPS %8.1f | Avg %6.2f ms | OK %8d | Err %8d | Last ID %s\n",
			formatState(idx, st), tps, bs.AvgLatencyMs, bs.Success, bs.Error, orDash(st.LastMessageID))
	}
}

func formatState(idx int, st bindstatus.Status) string {
	switch st.State {
	case bindstatus.Pending:
		return color.New(color.Faint).Sprintf("[P%d]", idx)
	case bindstatus.Connecting:
		return color.YellowString("[C%d]", idx)
	case bindstatus.Bound:
		return color.GreenString("[B%d]", idx)
	default:
		var msg = st.ErrMsg
		if len(msg) > 24 {
			msg = msg[:24] + "…"
		}
		return fmt.Sprintf("[%s:%s]", color.RedString("E%d", idx), msg)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashLine(n int) string {
	var b = make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

// tpsTracker derives a rate from successive attempt-count observations.
type tpsTracker struct {
	lastAttempts uint64
	lastInstant  time.Time
	initialized  bool
}

func (t *tpsTracker) tps(attempts uint64) float64 {
	var now = time.Now()
	if !t.initialized {
		t.lastAttempts, t.lastInstant, t.initialized = attempts, now, true
		return 0
	}

	var elapsed = now.Sub(t.lastInstant).Seconds()
	var delta = attempts - t.lastAttempts
	if attempts < t.lastAttempts {
		delta = 0
	}
	t.lastAttempts, t.lastInstant = attempts, now

	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed
}
