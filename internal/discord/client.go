// Package discord provides a client for Discord's local IPC socket, used to
// announce Rich Presence.
//
// [Connect] probes the candidate sockets and returns a [Client] that owns the
// connection. The client then drives the frame protocol:
//
//	Connect -> Handshake -> (Update | Clear)* -> Close
//
// A Client is not safe for concurrent use. Every call blocks until the frame
// has been written or read, and no call retries internally. Errors are
// returned to the caller and never logged here.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

var (
	// ErrNotConnected is returned by every operation except [Client.Close]
	// when the client no longer holds a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrIPCNotAvailable is returned by [Connect] when none of the candidate
	// sockets exists.
	ErrIPCNotAvailable = errors.New("discord IPC not available")

	// ErrHandshakeRejected is returned by [Client.AwaitReady] when the daemon
	// answers the handshake with an error.
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

// Option configures [Connect].
type Option func(*options)

type options struct {
	pid        int
	lookup     LookupEnv
	candidates []string
	dial       func(path string) (net.Conn, error)
}

// WithPID sets the process ID reported alongside activity updates. It
// defaults to the current process; an editor host may report its own PID so
// the daemon ties presence to the editor's lifetime.
func WithPID(pid int) Option {
	return func(o *options) { o.pid = pid }
}

// withCandidates replaces the probed socket paths.
func withCandidates(paths ...string) Option {
	return func(o *options) { o.candidates = paths }
}

// withLookup replaces the environment used for socket discovery.
func withLookup(lookup LookupEnv) Option {
	return func(o *options) { o.lookup = lookup }
}

// withDialer replaces the function used to open each candidate.
func withDialer(dial func(path string) (net.Conn, error)) Option {
	return func(o *options) { o.dial = dial }
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client is a connection to the presence daemon plus the protocol state that
// goes with it.
type Client struct {
	// clientID is the Discord application (OAuth2 client) identifier.
	clientID uint64
	// pid is reported in every SET_ACTIVITY command.
	pid int
	// conn is the open transport, or nil once the client has been closed.
	conn net.Conn
	// lastActivity is the most recent activity the daemon provably received.
	// It is nil until the first successful Update and after every Clear.
	lastActivity *Activity
	// nonce tags each command frame.
	nonce uint64
}

// Connect probes the candidate IPC sockets in slot order and returns a client
// owning the first one that accepts the connection.
//
// A candidate that does not exist is skipped, since other Discord instances
// may occupy lower slots. Any other failure stops the scan and is returned as
// is. When every candidate is missing, Connect returns [ErrIPCNotAvailable].
func Connect(clientID uint64, opts ...Option) (*Client, error) {
	o := options{
		pid:    os.Getpid(),
		lookup: os.LookupEnv,
		dial:   dialSocket,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.candidates == nil {
		o.candidates = defaultCandidates(o.lookup)
	}

	for _, path := range o.candidates {
		conn, err := o.dial(path)
		if err == nil {
			return &Client{clientID: clientID, pid: o.pid, conn: conn}, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return nil, fmt.Errorf("connecting to %s: %w", path, err)
	}
	return nil, ErrIPCNotAvailable
}

// ClientID returns the application identifier sent in the handshake.
func (c *Client) ClientID() uint64 {
	return c.clientID
}

// Connected reports whether the client still holds its connection.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// SetDeadline bounds every subsequent read and write on the connection; the
// zero time removes the bound. The client never sets deadlines itself, so a
// silent daemon blocks Read until the caller imposes one.
func (c *Client) SetDeadline(t time.Time) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.SetDeadline(t)
}

// ///////////////////////////////////////////////
// Framing
// ///////////////////////////////////////////////

// Write sends one frame. The header is written first, then the payload if
// there is one; an empty payload sends a header with length 0.
func (c *Client) Write(opcode Opcode, payload []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := checkPayloadSize(uint64(len(payload))); err != nil {
		return err
	}

	h := EncodeHeader(opcode, uint32(len(payload)))
	if err := writeFull(c.conn, h[:]); err != nil {
		return fmt.Errorf("writing %s header: %w", opcode, err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := writeFull(c.conn, payload); err != nil {
		return fmt.Errorf("writing %s payload: %w", opcode, err)
	}
	return nil
}

// Read blocks until one complete frame has arrived and returns its payload.
func (c *Client) Read() ([]byte, error) {
	_, payload, err := c.ReadFrame()
	return payload, err
}

// ReadFrame is like [Client.Read] but also returns the frame's opcode.
func (c *Client) ReadFrame() (Opcode, []byte, error) {
	if c.conn == nil {
		return 0, nil, ErrNotConnected
	}
	return DecodeFrame(c.conn)
}

// writeFull writes all of p or reports why it could not.
func writeFull(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// ///////////////////////////////////////////////
// Protocol Operations
// ///////////////////////////////////////////////

// Handshake sends the handshake frame. It must be the first frame after
// [Connect]. The daemon's reply is not read here; see [Client.AwaitReady].
func (c *Client) Handshake() error {
	// The daemon compares this payload byte for byte; keep the spacing.
	payload := fmt.Appendf(nil, `{"v": 1,"client_id":"%d"}`, c.clientID)
	return c.Write(OpHandshake, payload)
}

// AwaitReady reads the daemon's reply to the handshake. A READY dispatch is
// success; an ERROR event or a CLOSE frame is reported as
// [ErrHandshakeRejected] with the daemon's message.
func (c *Client) AwaitReady() error {
	opcode, payload, err := c.ReadFrame()
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}

	var resp struct {
		Evt  string `json:"evt"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing handshake response: %w", err)
	}

	switch {
	case opcode == OpClose:
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Message)
	case opcode != OpFrame:
		return fmt.Errorf("unexpected handshake response opcode: %s", opcode)
	case resp.Evt == "ERROR":
		return fmt.Errorf("%w: %s", ErrHandshakeRejected, resp.Data.Message)
	}
	return nil
}

// Update announces activity. When activity equals the last announcement the
// daemon received, nothing is sent. The announcement is remembered only after
// it has been written successfully, so a failed Update is retried in full by
// the next call.
func (c *Client) Update(activity Activity) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.lastActivity != nil && c.lastActivity.Equal(activity) {
		return nil
	}

	payload, err := json.Marshal(command{
		Cmd:   "SET_ACTIVITY",
		Args:  commandArgs{PID: c.pid, Activity: activity},
		Nonce: strconv.FormatUint(c.nonce+1, 10),
	})
	if err != nil {
		return fmt.Errorf("marshaling activity: %w", err)
	}

	if err := c.Write(OpFrame, payload); err != nil {
		return err
	}
	c.nonce++
	last := activity.Clone()
	c.lastActivity = &last
	return nil
}

// Clear asks the daemon to remove the displayed presence by sending a FRAME
// with no payload. On success the last announcement is forgotten, so the next
// Update is always sent.
func (c *Client) Clear() error {
	if err := c.Write(OpFrame, nil); err != nil {
		return err
	}
	c.lastActivity = nil
	return nil
}

// Close sends a CLOSE frame and releases the connection. The connection is
// released even when the CLOSE frame cannot be written. Closing a client that
// holds no connection is a no-op.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	c.lastActivity = nil

	h := EncodeHeader(OpClose, 0)
	writeErr := writeFull(conn, h[:])
	if writeErr != nil {
		writeErr = fmt.Errorf("writing %s header: %w", OpClose, writeErr)
	}
	return errors.Join(writeErr, conn.Close())
}

// ///////////////////////////////////////////////
// Wire Payloads
// ///////////////////////////////////////////////

// command is the JSON body of a FRAME carrying a command.
type command struct {
	Cmd   string      `json:"cmd"`
	Args  commandArgs `json:"args"`
	Nonce string      `json:"nonce"`
}

type commandArgs struct {
	PID      int      `json:"pid"`
	Activity Activity `json:"activity"`
}
