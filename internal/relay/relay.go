// Package relay keeps the Discord presence in sync with a directory of
// activity files.
//
// Producers write JSON activities into the directory (see [WriteActivity]);
// the relay publishes the newest one over the IPC client and clears the
// presence when none is left. The relay owns the client and calls it from a
// single goroutine, reconnecting on a timer when the daemon is unavailable.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tools.zach/dev/cord/internal/discord"
	"tools.zach/dev/cord/internal/logger"
)

// ///////////////////////////////////////////////
// Publisher
// ///////////////////////////////////////////////

// Publisher is the subset of [discord.Client] the relay drives.
type Publisher interface {
	Update(activity discord.Activity) error
	Clear() error
	Close() error
}

// Dialer opens a ready-to-use Publisher.
type Dialer func() (Publisher, error)

// handshakeTimeout bounds the wait for the daemon's READY reply.
const handshakeTimeout = 5 * time.Second

// DialDiscord returns a Dialer that connects to the local Discord client,
// performs the handshake and waits for READY.
func DialDiscord(clientID uint64, opts ...discord.Option) Dialer {
	return func() (Publisher, error) {
		c, err := discord.Connect(clientID, opts...)
		if err != nil {
			return nil, err
		}
		if err := handshake(c); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	}
}

func handshake(c *discord.Client) error {
	if err := c.SetDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	if err := c.Handshake(); err != nil {
		return err
	}
	if err := c.AwaitReady(); err != nil {
		return err
	}
	return c.SetDeadline(time.Time{})
}

// ///////////////////////////////////////////////
// Relay
// ///////////////////////////////////////////////

// Options configures a [Relay].
type Options struct {
	// Source is where activities are read from.
	Source Source
	// StaleAfter ignores activity files older than this (0 disables).
	StaleAfter time.Duration
	// PollInterval is how often the source is rescanned without an event.
	PollInterval time.Duration
	// ReconnectInterval is how often a missing connection is retried.
	ReconnectInterval time.Duration
	// Dial opens the connection to the presence daemon.
	Dial Dialer
	// Logger receives relay logs; nil means slog.Default().
	Logger *slog.Logger
}

// Relay publishes the newest activity of a [Source] to the presence daemon.
type Relay struct {
	opts Options
	log  *slog.Logger

	// client is nil while disconnected.
	client Publisher
	// cleared records that the presence has been cleared on this connection
	// and no activity has been published since.
	cleared bool
	// current is the activity file last published.
	current string
}

// New creates a Relay. It does not connect until [Relay.Run].
func New(opts Options) *Relay {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Source.Logger == nil {
		opts.Source.Logger = log
	}
	return &Relay{opts: opts, log: log}
}

// Connected reports whether the relay currently holds a connection.
func (r *Relay) Connected() bool {
	return r.client != nil
}

// Run publishes until ctx is cancelled. Each receive on events triggers a
// rescan of the source. On return the presence is cleared and the connection
// closed.
func (r *Relay) Run(ctx context.Context, events <-chan struct{}) error {
	poll := time.NewTicker(r.opts.PollInterval)
	defer poll.Stop()
	reconnect := time.NewTicker(r.opts.ReconnectInterval)
	defer reconnect.Stop()

	if r.connect() {
		r.sync()
	}

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case <-events:
			r.sync()
		case <-poll.C:
			r.sync()
		case <-reconnect.C:
			if r.client == nil && r.connect() {
				r.sync()
			}
		}
	}
}

// connect dials the daemon and reports whether a connection is now held.
func (r *Relay) connect() bool {
	c, err := r.opts.Dial()
	if err != nil {
		if errors.Is(err, discord.ErrIPCNotAvailable) {
			r.log.Debug("presence daemon not running", "error", err)
		} else {
			r.log.Warn("presence daemon connect failed", "error", err)
		}
		return false
	}
	r.log.Info("connected to presence daemon")
	r.client = c
	r.cleared = false
	r.current = ""
	return true
}

// sync publishes the newest activity, or clears the presence once when the
// source has none.
func (r *Relay) sync() {
	if r.client == nil {
		return
	}
	logger.Trace(r.log, "syncing presence", "dir", r.opts.Source.Dir)

	a, path, ok, err := r.opts.Source.Latest(r.opts.StaleAfter)
	if err != nil {
		r.log.Warn("reading activity failed", "error", err)
		return
	}

	if !ok {
		if r.cleared {
			return
		}
		if err := r.client.Clear(); err != nil {
			r.drop(err)
			return
		}
		r.cleared = true
		r.current = ""
		r.log.Info("presence cleared")
		return
	}

	if err := r.client.Update(a); err != nil {
		r.drop(err)
		return
	}
	r.cleared = false
	if path != r.current {
		r.current = path
		r.log.Info("publishing activity", "path", path)
	}
	r.log.Debug("presence updated", "details", a.Details, "state", a.State)
}

// drop discards a connection that failed mid-use. The next reconnect tick
// dials a fresh one, which re-announces the activity from scratch.
func (r *Relay) drop(cause error) {
	r.log.Warn("presence connection lost", "error", cause)
	if err := r.client.Close(); err != nil {
		r.log.Debug("closing failed connection", "error", err)
	}
	r.client = nil
}

// shutdown clears the presence and closes the connection.
func (r *Relay) shutdown() {
	if r.client == nil {
		return
	}
	if err := r.client.Clear(); err != nil {
		r.log.Debug("clearing presence on shutdown", "error", err)
	}
	if err := r.client.Close(); err != nil {
		r.log.Debug("closing connection on shutdown", "error", err)
	}
	r.client = nil
	r.log.Info("disconnected from presence daemon")
}
