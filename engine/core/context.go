package core

import (
	"github.com/cockroachdb/errors"
)

// Context bundles the process-wide subsystems that every other part of the
// engine reads from. It replaces file-level state so several engines, or
// tests, can live in one process.
type Context struct {
	Logger  *Logger
	Events  *EventSystem
	Clock   *Clock
	Metrics *Metrics

	initialized bool
}

func NewContext(logger *Logger) *Context {
	if logger == nil {
		logger = getLogger()
	}
	return &Context{
		Logger:  logger,
		Events:  NewEventSystem(),
		Clock:   NewClock(),
		Metrics: NewMetrics(),
	}
}

func (c *Context) Initialize() error {
	if c.initialized {
		return errors.New("core context already initialized")
	}
	SetDefaultLogger(c.Logger)
	if !c.Events.Initialize() {
		return errors.New("failed to initialize the event system")
	}
	c.Metrics.Reset()
	c.initialized = true
	return nil
}

func (c *Context) Shutdown() error {
	if !c.initialized {
		return nil
	}
	c.Events.Shutdown()
	c.Clock.Stop()
	c.initialized = false
	return nil
}
