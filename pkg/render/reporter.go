// ABOUTME: Rate-limited logging for the render path
// ABOUTME: Drops repeated messages and reports how many were suppressed
package render

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// reporter logs at most a few messages per second and counts the rest
type reporter struct {
	logger     *log.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

func newReporter(logger *log.Logger, every time.Duration, burst int) *reporter {
	return &reporter{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(every), burst),
	}
}

func (r *reporter) Warn(msg string, keyvals ...any) {
	r.log(log.WarnLevel, msg, keyvals...)
}

func (r *reporter) Error(msg string, keyvals ...any) {
	r.log(log.ErrorLevel, msg, keyvals...)
}

func (r *reporter) log(level log.Level, msg string, keyvals ...any) {
	if !r.limiter.Allow() {
		r.suppressed.Add(1)
		return
	}
	if n := r.suppressed.Swap(0); n > 0 {
		keyvals = append(keyvals, "suppressed", n)
	}
	r.logger.Log(level, msg, keyvals...)
}
