// Package feed rotates a fixed alert sequence on a timer: the first alert after
// an initial delay, then the next one every interval, wrapping around.
package feed

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/ontology"
)

type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		InitialDelay: 10 * time.Second,
		Interval:     2 * time.Minute,
	}
}

// EmitFunc receives each emitted alert. It is called from the timer's
// goroutine and must hand the alert off rather than touch shared state.
type EmitFunc func(ontology.AlertEvent)

type Generator struct {
	clock    clockwork.Clock
	config   *Config
	sequence []ontology.AlertEvent
	logger   *zap.Logger

	mu      sync.Mutex
	cursor  int
	emitted uint64
	timer   clockwork.Timer
	emit    EmitFunc
	running bool
	stopped bool
}

func New(clk clockwork.Clock, cfg *Config, sequence []ontology.AlertEvent, logger *zap.Logger) *Generator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	seq := make([]ontology.AlertEvent, len(sequence))
	copy(seq, sequence)

	return &Generator{
		clock:    clk,
		config:   cfg,
		sequence: seq,
		logger:   logger.Named("feed"),
	}
}

// Start arms the initial-delay timer. It returns false without scheduling
// anything when the sequence is empty, when already running, or after Stop.
func (g *Generator) Start(emit EmitFunc) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.sequence) == 0 {
		g.logger.Debug("Alert sequence is empty, feed stays idle")
		return false
	}
	if g.running || g.stopped {
		return false
	}

	g.emit = emit
	g.running = true
	g.timer = g.clock.AfterFunc(g.config.InitialDelay, g.fire)

	g.logger.Info("Alert feed started",
		zap.Int("sequence_length", len(g.sequence)),
		zap.Duration("initial_delay", g.config.InitialDelay),
		zap.Duration("interval", g.config.Interval))
	return true
}

// Stop cancels whichever timer is pending. No emission starts after Stop
// returns. A stopped generator cannot be restarted.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return
	}
	g.stopped = true
	if !g.running {
		return
	}
	g.running = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.logger.Info("Alert feed stopped", zap.Uint64("emitted", g.emitted))
}

// fire hands the alert off before arming the next interval, so an armed
// timer means the previous emission has been delivered.
func (g *Generator) fire() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}

	event := g.sequence[g.cursor]
	event.RaisedAt = g.clock.Now()
	g.cursor = (g.cursor + 1) % len(g.sequence)
	g.emitted++
	emit := g.emit
	g.mu.Unlock()

	g.logger.Debug("Emitting alert",
		zap.String("alert_id", event.ID),
		zap.String("trip_ref", event.SubjectTripRef))
	emit(event)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.timer = g.clock.AfterFunc(g.config.Interval, g.fire)
	}
}

// Cursor is the index of the next template to emit.
func (g *Generator) Cursor() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cursor
}

func (g *Generator) Emitted() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.emitted
}

func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}
