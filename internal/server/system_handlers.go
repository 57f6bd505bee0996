package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse describes process and host health
type SystemStatusResponse struct {
	EngineRunning bool    `json:"engine_running"`
	TaskCount     int     `json:"task_count"`
	UptimeSecs    float64 `json:"uptime_secs"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemPercent    float64 `json:"mem_percent"`
	MemUsedMB     float64 `json:"mem_used_mb"`
}

// handleSystemStatus returns engine state plus host resource usage
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		EngineRunning: s.engine.Running(),
		TaskCount:     len(s.registry.List()),
		UptimeSecs:    time.Since(s.startedAt).Seconds(),
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		resp.CPUPercent = percentages[0]
	} else if err != nil {
		s.log.Debug().Err(err).Msg("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemPercent = vm.UsedPercent
		resp.MemUsedMB = float64(vm.Used) / 1024 / 1024
	} else {
		s.log.Debug().Err(err).Msg("Failed to read memory usage")
	}

	s.writeJSON(w, http.StatusOK, resp)
}
