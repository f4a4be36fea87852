package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/logger"
	"github.com/kbukum/lifecycle/observability"
)

// staleAfter is how many missed intervals degrade a running heartbeat.
const staleAfter = 3

// Config declares one heartbeat component.
type Config struct {
	Name      string        `yaml:"name" mapstructure:"name" validate:"required,component_name"`
	Interval  time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	Paused    bool          `yaml:"paused" mapstructure:"paused"`
	DependsOn []string      `yaml:"depends_on" mapstructure:"depends_on" validate:"omitempty,dive,component_name"`
	Message   string        `yaml:"message" mapstructure:"message"`
}

// ApplyDefaults fills in the interval.
func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = component.DefaultInterval
	}
}

// Status is a heartbeat's counters.
type Status struct {
	Name     string    `json:"name"`
	Running  bool      `json:"running"`
	Ticks    int64     `json:"ticks"`
	Starts   int64     `json:"starts"`
	LastTick time.Time `json:"last_tick,omitzero"`
}

// Component counts update ticks and logs them. It is restartable; counters
// survive stop and start.
type Component struct {
	name     string
	message  string
	interval time.Duration
	log      *logger.Logger

	running atomic.Bool
	ticks   atomic.Int64
	starts  atomic.Int64

	mu       sync.Mutex
	lastTick time.Time
}

var (
	_ component.Component         = (*Component)(nil)
	_ component.Updater           = (*Component)(nil)
	_ component.Describable       = (*Component)(nil)
	_ observability.HealthChecker = (*Component)(nil)
)

// New creates a heartbeat from cfg.
func New(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Component{
		name:     cfg.Name,
		message:  cfg.Message,
		interval: cfg.Interval,
		log:      log.WithComponent(cfg.Name),
	}
}

// Register adds a heartbeat for cfg to reg with its interval and dependencies.
func Register(reg *component.Registry, cfg Config, log *logger.Logger) (*Component, error) {
	c := New(cfg, log)
	err := reg.Register(cfg.Name, c,
		component.WithInterval(c.interval),
		component.DependsOn(cfg.DependsOn...),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Component) Start(context.Context) error {
	c.running.Store(true)
	n := c.starts.Add(1)
	c.log.Info("Heartbeat started", map[string]interface{}{
		"starts":              n,
		logger.FieldInterval: c.interval.String(),
	})
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.running.Store(false)
	c.log.Info("Heartbeat stopped", map[string]interface{}{
		"ticks": c.ticks.Load(),
	})
	return nil
}

func (c *Component) Shutdown(context.Context) error {
	c.running.Store(false)
	return nil
}

// Update records one tick.
func (c *Component) Update(context.Context) error {
	n := c.ticks.Add(1)
	c.mu.Lock()
	c.lastTick = time.Now()
	c.mu.Unlock()

	fields := map[string]interface{}{"tick": n}
	if c.message != "" {
		fields["message"] = c.message
	}
	c.log.Debug("Heartbeat", fields)
	return nil
}

// Status returns a snapshot of the counters.
func (c *Component) Status() Status {
	c.mu.Lock()
	last := c.lastTick
	c.mu.Unlock()
	return Status{
		Name:     c.name,
		Running:  c.running.Load(),
		Ticks:    c.ticks.Load(),
		Starts:   c.starts.Load(),
		LastTick: last,
	}
}

// CheckHealth reports degraded when no tick arrived for staleAfter intervals.
func (c *Component) CheckHealth(context.Context) observability.Health {
	s := c.Status()
	h := observability.Health{
		Name:    c.name,
		Status:  observability.HealthStatusUp,
		Message: fmt.Sprintf("%d ticks", s.Ticks),
	}
	if !s.LastTick.IsZero() && time.Since(s.LastTick) > staleAfter*c.interval {
		h.Status = observability.HealthStatusDegraded
		h.Message = "last tick " + time.Since(s.LastTick).Round(time.Second).String() + " ago"
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{Type: "heartbeat", Details: c.message}
}
