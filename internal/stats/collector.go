package stats

import (
	"sync"
	"time"

	"github.com/framescope/framescope/internal/frame"
	"github.com/framescope/framescope/internal/logger"
)

// DefaultPeriod is how often the collector polls the live view slot.
const DefaultPeriod = 200 * time.Millisecond

// Collector periodically evaluates every defined region over the newest
// frame in the live view slot. The slot generation counter makes repeat
// polls of an unchanged frame free.
type Collector struct {
	slot   *frame.Latest
	set    *Set
	period time.Duration

	mu        sync.RWMutex
	lastGen   uint64
	latest    []Result
	listeners []chan []Result

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewCollector creates a collector over slot and set.
func NewCollector(slot *frame.Latest, set *Set, period time.Duration) *Collector {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Collector{
		slot:     slot,
		set:      set,
		period:   period,
		stopChan: make(chan struct{}),
	}
}

// Start launches the polling loop.
func (c *Collector) Start() {
	go c.run()
}

// Stop terminates the polling loop. Idempotent.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) run() {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

func (c *Collector) poll() {
	fr, gen := c.slot.Read()
	if fr == nil || gen == c.lastGenSnapshot() {
		return
	}

	rois := c.set.List()
	results := make([]Result, 0, len(rois))
	for _, r := range rois {
		res := Compute(r, fr)
		res.Generation = gen
		results = append(results, res)
	}

	c.mu.Lock()
	c.lastGen = gen
	c.latest = results
	listeners := c.listeners
	c.mu.Unlock()

	for _, l := range listeners {
		select {
		case l <- results:
		default:
		}
	}

	logger.WithComponent("stats").Debug().
		Uint64("generation", gen).
		Int("rois", len(results)).
		Msg("Computed ROI stats")
}

func (c *Collector) lastGenSnapshot() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastGen
}

// Latest returns the most recent results.
func (c *Collector) Latest() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Subscribe registers a listener for new result batches.
func (c *Collector) Subscribe() chan []Result {
	ch := make(chan []Result, 4)
	c.mu.Lock()
	c.listeners = append(c.listeners, ch)
	c.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (c *Collector) Unsubscribe(ch chan []Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, l := range c.listeners {
		if l == ch {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}
