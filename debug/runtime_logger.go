package debug

// Runtime metrics logger. Started only when config.Debug is true.
// Emits goroutine count, stack and heap usage plus process RSS at a fixed
// interval, to rule out leaks in long frame timing sessions.

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
)

// RunRuntimeLogger logs runtime and process memory statistics every interval
// until ctx is done.
func RunRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		logger.Warn("runtime logger: process handle unavailable", slog.String("err", err.Error()))
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	var rssErrLogged bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		metrics.Read(samples)
		goroutines := samples[0].Value.Uint64()
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)

		rss := uint64(0)
		if proc != nil {
			if mi, err := proc.MemoryInfoWithContext(ctx); err == nil {
				rss = mi.RSS
			} else if !rssErrLogged {
				logger.Warn("runtime logger: memory info failed", slog.String("err", err.Error()))
				rssErrLogged = true
			}
		}
		logger.Info("runtime-stats",
			slog.Uint64("goroutines", goroutines),
			slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
			slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
			slog.String("heap_sys", humanize.IBytes(ms.HeapSys)),
			slog.String("rss", humanize.IBytes(rss)),
			slog.Uint64("num_gc", uint64(ms.NumGC)),
		)
	}
}
