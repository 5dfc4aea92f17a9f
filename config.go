package foreman

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/TheBitDrifter/bark"
)

// Config holds package-wide defaults. Set it up before building worlds and
// dispatchers.
var Config config = config{
	workers: runtime.GOMAXPROCS(0),
	warnAt:  1 << 16,
}

type config struct {
	logger  *slog.Logger
	wake    sync.Once
	own     *slog.Logger
	workers int
	limit   int
	warnAt  int
}

// SetLogger sets the logger used for debug output and warnings.
func (c *config) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Logger returns the configured logger, or bark's logger for the
// "foreman" component.
func (c *config) Logger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	c.wake.Do(func() {
		c.own = bark.For("foreman")
	})
	return c.own
}

// SetWorkers sets the default worker pool size of new dispatchers.
func (c *config) SetWorkers(n int) {
	if n > 0 {
		c.workers = n
	}
}

// Workers returns the default worker pool size.
func (c *config) Workers() int {
	return c.workers
}

// SetChannelPolicy sets the backlog limit and warn threshold of new change
// logs. A zero limit keeps logs unbounded; a zero threshold disables the
// warning.
func (c *config) SetChannelPolicy(limit, warnAt int) {
	c.limit = limit
	c.warnAt = warnAt
}

// ChannelPolicy returns the backlog limit and warn threshold.
func (c *config) ChannelPolicy() (limit, warnAt int) {
	return c.limit, c.warnAt
}
