package timing

import (
	"log"
	"time"

	"github.com/sarchlab/circus/sim/hooking"
)

// ClockLogger is a hook that prints the time of a clock after each advance.
type ClockLogger struct {
	logger *log.Logger
	layout string
}

// NewClockLogger returns a new ClockLogger which will write in to the logger.
func NewClockLogger(logger *log.Logger) *ClockLogger {
	h := new(ClockLogger)

	h.logger = logger
	h.layout = time.RFC3339

	return h
}

// WithLayout changes the layout used to print the clock time.
func (h *ClockLogger) WithLayout(layout string) *ClockLogger {
	h.layout = layout
	return h
}

type named interface {
	Name() string
}

// Func writes the clock time into the logger.
func (h *ClockLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosAfterIncrement {
		return
	}

	now, ok := ctx.Item.(time.Time)
	if !ok {
		return
	}

	name := "clock"
	if n, ok := ctx.Domain.(named); ok {
		name = n.Name()
	}

	h.logger.Printf("%s, %s", name, now.Format(h.layout))
}
