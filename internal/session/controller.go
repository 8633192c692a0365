package session

import (
	"strconv"
	"sync"
	"time"

	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/models"
	"github.com/kvasnell/telezap/internal/resolver"
)

const (
	// noChannel marks a controller with no current channel
	noChannel = -1
)

// Sink receives resolved stream addresses and drives the actual transport.
// It must be safe to call Stop/Release on a sink that is not playing.
type Sink interface {
	Play(address string) error
	Stop()
	Release()
}

// ChannelList is the read-only view of the active channel list
type ChannelList interface {
	Count() int
	At(index int) (models.Channel, bool)
	FindByNumber(number int) (int, bool)
}

// Controller owns the single "currently playing" resource. Switches are
// serialized and always fully release the current stream before acquiring a
// new one: the carrier network caps simultaneously open multicast streams at
// two, and staying at one keeps the device clear of upstream throttling.
type Controller struct {
	list     ChannelList
	resolver *resolver.Resolver
	sink     Sink

	debounceWindow time.Duration
	maxDigits      int

	// onChannelChanged is invoked outside the controller lock after every
	// completed switch
	onChannelChanged func(index int)

	mu         sync.Mutex
	state      State
	current    int
	session    *PlaybackSession
	generation uint64
	digits     []byte
	digitTimer *time.Timer
}

// NewController creates a playback session controller
func NewController(list ChannelList, res *resolver.Resolver, sink Sink, debounceWindow time.Duration, maxDigits int) *Controller {
	return &Controller{
		list:           list,
		resolver:       res,
		sink:           sink,
		debounceWindow: debounceWindow,
		maxDigits:      maxDigits,
		state:          StateIdle,
		current:        noChannel,
	}
}

// SetChannelChanged registers the channel-changed notification hook
func (c *Controller) SetChannelChanged(fn func(index int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChannelChanged = fn
}

// State returns the current session state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentIndex returns the current channel index, or -1 when none
func (c *Controller) CurrentIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Session returns the current playback session record, nil when not playing
func (c *Controller) Session() *PlaybackSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// PendingDigits returns the buffered numeric entry, empty when none pending
func (c *Controller) PendingDigits() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.digits)
}

// SwitchTo switches playback to the channel at the given list index.
// Out-of-range indexes are rejected silently. A switch supersedes any pending
// numeric entry and any in-flight switch that has not yet reached playing.
func (c *Controller) SwitchTo(index int) {
	c.mu.Lock()
	ch, ok := c.list.At(index)
	if !ok {
		c.mu.Unlock()
		return
	}

	c.clearDigitsLocked()
	c.generation++
	gen := c.generation

	// Release before acquire: the current stream is fully stopped before a
	// new one is requested, keeping at most one stream open at any moment.
	if c.state == StatePlaying {
		c.sink.Stop()
		c.sink.Release()
	}
	c.state = StateSwitching
	c.session = nil
	c.mu.Unlock()

	address := c.resolver.Resolve(ch.URLTemplate)

	c.mu.Lock()
	if c.generation != gen {
		// Superseded by a newer switch or an explicit stop
		c.mu.Unlock()
		return
	}
	if err := c.sink.Play(address); err != nil {
		c.state = StateStopped
		c.mu.Unlock()
		logger.Log.Error().
			Err(err).
			Int("index", index).
			Int("number", ch.Number).
			Msg("Sink rejected resolved address")
		return
	}
	c.state = StatePlaying
	c.current = index
	c.session = NewPlaybackSession(index, ch.Number, address)
	notify := c.onChannelChanged
	c.mu.Unlock()

	logger.Log.Info().
		Int("index", index).
		Int("number", ch.Number).
		Str("name", ch.Name).
		Msg("Channel playing")

	if notify != nil {
		notify(index)
	}
}

// SwitchUp switches to the next channel, wrapping at the end of the list
func (c *Controller) SwitchUp() {
	c.step(1)
}

// SwitchDown switches to the previous channel, wrapping at the start of the list
func (c *Controller) SwitchDown() {
	c.step(-1)
}

func (c *Controller) step(delta int) {
	c.mu.Lock()
	count := c.list.Count()
	if count == 0 {
		c.mu.Unlock()
		return
	}
	next := 0
	if c.current != noChannel {
		next = ((c.current+delta)%count + count) % count
	}
	c.mu.Unlock()

	c.SwitchTo(next)
}

// Stop releases the current stream, if any. The session may switch again
// afterwards; stopped is not terminal.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearDigitsLocked()

	switch c.state {
	case StatePlaying:
		c.generation++ // also invalidates any racing switch
		c.sink.Stop()
		c.sink.Release()
		c.state = StateStopped
		c.session = nil
		logger.Log.Info().Int("index", c.current).Msg("Playback stopped")
	case StateSwitching:
		// The in-flight switch has not handed anything to the sink yet;
		// bumping the generation is enough to abandon it.
		c.generation++
		c.state = StateStopped
		c.session = nil
		logger.Log.Info().Msg("Pending switch aborted")
	default:
		// Idle or already stopped
	}
}

// SelectDigit appends one digit of a channel number. The switch fires after
// the debounce window elapses with no further digits; every new digit resets
// the window. Digits beyond the buffer bound are dropped but still reset the
// window.
func (c *Controller) SelectDigit(d int) {
	if d < 0 || d > 9 {
		return
	}

	c.mu.Lock()
	if len(c.digits) < c.maxDigits {
		c.digits = append(c.digits, byte('0'+d))
	}
	// Replace the pending timer wholesale so the window restarts from the
	// last digit received.
	if c.digitTimer != nil {
		c.digitTimer.Stop()
	}
	c.digitTimer = time.AfterFunc(c.debounceWindow, c.commitDigits)
	buffered := string(c.digits)
	c.mu.Unlock()

	logger.Log.Debug().
		Str("buffer", buffered).
		Msg("Digit buffered")
}

// commitDigits resolves the buffered number to a channel index and switches.
// No numeric match clears the buffer and changes nothing else.
func (c *Controller) commitDigits() {
	c.mu.Lock()
	buffered := string(c.digits)
	c.digits = c.digits[:0]
	c.digitTimer = nil
	c.mu.Unlock()

	if buffered == "" {
		return
	}

	number, err := strconv.Atoi(buffered)
	if err != nil {
		return
	}

	index, ok := c.list.FindByNumber(number)
	if !ok {
		logger.Log.Debug().
			Int("number", number).
			Msg("No channel matches buffered number")
		return
	}

	c.SwitchTo(index)
}

// clearDigitsLocked cancels the pending numeric entry. Caller holds c.mu.
func (c *Controller) clearDigitsLocked() {
	if c.digitTimer != nil {
		c.digitTimer.Stop()
		c.digitTimer = nil
	}
	c.digits = c.digits[:0]
}
