package util

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemInfo holds information about the host and this process.
type SystemInfo struct {
	Hostname     string  `json:"hostname"`
	OS           string  `json:"os"`
	Architecture string  `json:"architecture"`
	GoVersion    string  `json:"go_version"`
	CPUModel     string  `json:"cpu_model,omitempty"`
	CPUCores     int     `json:"cpu_cores"`
	CPUPercent   float64 `json:"cpu_percent"`
	TotalMemory  uint64  `json:"total_memory_mb"`
	UsedMemory   float64 `json:"used_memory_percent"`
	Uptime       uint64  `json:"uptime_sec"`
	Process      Process `json:"process"`
	Disk         *Disk   `json:"disk,omitempty"`
}

// Process describes the running client process.
type Process struct {
	PID        int32   `json:"pid"`
	RSS        uint64  `json:"rss_mb"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
	StartedAt  string  `json:"started_at,omitempty"`
}

// Disk describes usage of the volume holding the data directory.
type Disk struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total_gb"`
	Free        uint64  `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// GetSystemInfo gathers host information. dataPath selects the volume
// reported under Disk; empty skips it.
func GetSystemInfo(dataPath string) SystemInfo {
	info := SystemInfo{
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		CPUCores:     runtime.NumCPU(),
		OS:           runtime.GOOS,
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
		info.Uptime = hostInfo.Uptime
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		info.CPUPercent = percentages[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / (1024 * 1024)
		info.UsedMemory = memInfo.UsedPercent
	}

	info.Process = currentProcess()

	if dataPath != "" {
		if usage, err := disk.Usage(dataPath); err == nil {
			info.Disk = &Disk{
				Path:        dataPath,
				Total:       usage.Total / (1024 * 1024 * 1024),
				Free:        usage.Free / (1024 * 1024 * 1024),
				UsedPercent: usage.UsedPercent,
			}
		}
	}

	return info
}

func currentProcess() Process {
	p := Process{
		PID:        int32(os.Getpid()),
		Goroutines: runtime.NumGoroutine(),
	}
	proc, err := process.NewProcess(p.PID)
	if err != nil {
		return p
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		p.RSS = memInfo.RSS / (1024 * 1024)
	}
	if pct, err := proc.CPUPercent(); err == nil {
		p.CPUPercent = pct
	}
	if created, err := proc.CreateTime(); err == nil {
		p.StartedAt = time.UnixMilli(created).UTC().Format(time.RFC3339)
	}
	return p
}
