package handlers

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"grounded/utils"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfoHandler returns a GET handler reporting host and process status
// for the admin dashboard.
func SystemInfoHandler(app Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			utils.RespondMessage(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		// Get CPU info
		cpuCount, _ := cpu.Counts(true)
		cpuPercent, _ := cpu.Percent(0, false)
		cpuUsed := 0.0
		if len(cpuPercent) > 0 {
			cpuUsed = cpuPercent[0]
		}

		// Get memory info
		vm, _ := mem.VirtualMemory()

		// Get host info
		hostInfo, _ := host.Info()

		// Get database size
		var dbSize int64
		if fi, err := os.Stat(app.GetConfig().DatabasePath); err == nil {
			dbSize = fi.Size() / 1024 / 1024 // in MB
		}

		info := map[string]interface{}{
			"os":          fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion),
			"kernel":      hostInfo.KernelVersion,
			"go_version":  runtime.Version(),
			"cpu_count":   cpuCount,
			"cpu_percent": fmt.Sprintf("%.1f%%", cpuUsed),
			"memory":      fmt.Sprintf("%.1f%% (%d MB / %d MB)", vm.UsedPercent, vm.Used/1024/1024, vm.Total/1024/1024),
			"db_size_mb":  dbSize,
			"goroutines":  runtime.NumGoroutine(),
			"reported_at": time.Now().Format("15:04"),
		}
		utils.RespondJSON(w, http.StatusOK, info)
	}
}
