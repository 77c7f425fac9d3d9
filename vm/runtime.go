package vm

import (
	"runtime"
	"time"
)

func timeNow() time.Time { return time.Now() }

func peakHeapBytes() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapSys
}
