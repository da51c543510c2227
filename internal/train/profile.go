package train

import (
	"log"
	"time"

	"github.com/born-ml/bpnet/internal/backend/device"
)

// Profiler is implemented by backends that time their kernels.
type Profiler interface {
	Profile() []device.KernelStat
	ResetProfile()
}

// LogProfile prints one line per kernel that ran, then the total.
func LogProfile(logger *log.Logger, stats []device.KernelStat) {
	var total time.Duration
	for _, s := range stats {
		if s.Count == 0 {
			continue
		}
		logger.Printf("%.3f ms, %d times : '%s'", ms(s.Time), s.Count, s.Name)
		total += s.Time
	}
	logger.Printf("total: %.3f ms", ms(total))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (t *Trainer) logProfile() {
	p, ok := t.net.Factory().(Profiler)
	if !ok {
		return
	}
	LogProfile(t.logger, p.Profile())
	p.ResetProfile()
}
