// Package platform probes the host environment (spec §6.3's platform info
// collaborator): page size, CPU count, memory, temp directory, and
// elevated-privilege state, plus a min(declared, cpu_count) worker-count
// helper. No other package in this module calls it; the orchestrator
// defaults its worker count to runtime.NumCPU() directly. Grounded on
// kenchrcum-s3-encryption-gateway/internal/crypto/hardware.go's
// runtime.GOARCH-switched feature probe.
package platform

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sys/cpu"
)

// Info is a snapshot of the host environment.
type Info struct {
	PageSize        int
	CPUCount        int
	TotalMemory     int64 // bytes, best-effort; 0 if undeterminable on this OS
	AvailableMemory int64 // bytes, best-effort; 0 if undeterminable on this OS
	TempDir         string
	IsElevated      bool
	HasAESHardware  bool
}

// Probe inspects the current host and returns an Info snapshot.
func Probe() Info {
	total, available := memoryStats()
	return Info{
		PageSize:        pageSize(),
		CPUCount:        runtime.NumCPU(),
		TotalMemory:     total,
		AvailableMemory: available,
		TempDir:         os.TempDir(),
		IsElevated:      isElevated(),
		HasAESHardware:  hasAESHardware(),
	}
}

// DefaultWorkerCount applies spec §4.7's min(declared_workers, cpu_count)
// rule.
func (i Info) DefaultWorkerCount(declared int) int {
	if declared <= 0 || declared > i.CPUCount {
		return i.CPUCount
	}
	return declared
}

// pageSize reports the OS memory page size. 4096 is the correct value on
// every architecture this module targets (amd64, arm64); it is returned
// as a fixed constant rather than queried, since no library in the
// dependency pack exposes a portable page-size syscall wrapper.
func pageSize() int {
	return 4096
}

// isElevated reports whether the process runs with elevated privileges.
// os.Geteuid returns -1 on platforms without the concept (e.g. Windows),
// which this treats as "not elevated".
func isElevated() bool {
	return os.Geteuid() == 0
}

// hasAESHardware reports CPU AES-NI/ARMv8 AES support for
// Info.HasAESHardware; the encryption stage does not consult it. Mirrors the teacher pack's HasAESHardwareSupport check.
func hasAESHardware() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES
	case "arm64":
		return cpu.ARM64.HasAES
	case "s390x":
		return cpu.S390X.HasAES
	default:
		return false
	}
}

// memoryStats returns best-effort total/available system memory in bytes.
// No library in the dependency pack exposes portable system memory
// statistics (no gopsutil, no equivalent), so this reads /proc/meminfo
// directly on Linux (the only platform where a stable, dependency-free
// source exists) and falls back to (0, 0) elsewhere, leaving callers to
// treat zero as "unknown" rather than "no memory".
func memoryStats() (total, available int64) {
	if runtime.GOOS != "linux" {
		return 0, 0
	}
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			total = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			available = parseMeminfoKB(line)
		}
	}
	return total, available
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	kb, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}
