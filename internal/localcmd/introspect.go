package localcmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

// NoExecutorHint is returned by connection_diagnostics when nothing can
// execute forwarded commands.
const NoExecutorHint = "No executor is connected. Open the plugin in the design tool and join the channel."

// activeChannels formats the channel listing as a single line. Never fails.
func (r *Registry) activeChannels(context.Context, string, json.RawMessage) (any, *protocol.CommandError) {
	var names []string
	if state := r.brokerState(); state != nil {
		for _, ch := range state.ActiveChannels() {
			names = append(names, ch.Name)
		}
	}
	if len(names) == 0 {
		return "Active channels (0): none", nil
	}
	return fmt.Sprintf("Active channels (%d): %s", len(names), strings.Join(names, ", ")), nil
}

type diagnosticsReport struct {
	Status   string          `json:"status"`
	UptimeS  int64           `json:"uptime_s"`
	Port     int             `json:"port"`
	Channels []ChannelInfo   `json:"channels"`
	Hint     string          `json:"hint,omitempty"`
	System   *systemSnapshot `json:"system,omitempty"`
}

type systemSnapshot struct {
	Goroutines     int     `json:"goroutines"`
	RSSBytes       uint64  `json:"rss_bytes,omitempty"`
	CPUPercent     float64 `json:"cpu_percent,omitempty"`
	HostMemPercent float64 `json:"host_mem_percent,omitempty"`
}

// diagnostics snapshots broker health for humans debugging a dead channel.
func (r *Registry) diagnostics(context.Context, string, json.RawMessage) (any, *protocol.CommandError) {
	report := diagnosticsReport{
		Status:   "ok",
		Port:     r.deps.Port,
		Channels: []ChannelInfo{},
		System:   snapshotSystem(),
	}
	state := r.brokerState()
	if state == nil {
		report.Status = "starting"
		report.Hint = NoExecutorHint
		return report, nil
	}
	report.UptimeS = int64(state.Uptime() / time.Second)
	report.Channels = state.ActiveChannels()

	executors := 0
	for _, ch := range report.Channels {
		executors += ch.Executors
	}
	if executors == 0 {
		report.Hint = NoExecutorHint
	}
	return report, nil
}

// snapshotSystem gathers best-effort process and host stats. Failures leave
// fields zero rather than failing the command.
func snapshotSystem() *systemSnapshot {
	snap := &systemSnapshot{Goroutines: runtime.NumGoroutine()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			snap.RSSBytes = info.RSS
		}
		if pct, err := proc.CPUPercent(); err == nil {
			snap.CPUPercent = pct
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.HostMemPercent = vm.UsedPercent
	}
	return snap
}
