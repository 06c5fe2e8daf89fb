// Package poolclient implements a Stratum-like mining pool session: a
// connect/subscribe/authorize state machine, job retention, and share
// submission, over a pluggable Transport.
package poolclient

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"

	"coinshaft/internal/errs"
	"coinshaft/internal/hexutil"
	"coinshaft/internal/powcore"
)

// State is a pool session's connection lifecycle stage.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Subscribed
	Authorized
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	case Authorized:
		return "authorized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// atLeastConnected reports whether s is Connected or a later state.
func (s State) atLeastConnected() bool {
	return s == Connected || s == Subscribed || s == Authorized
}

// MiningJob is a unit of work pushed by the pool: a header template plus the
// target it must satisfy.
type MiningJob struct {
	JobID           string
	Header          powcore.BlockHeader
	Target          powcore.HashTarget
	Extranonce1     []byte
	Extranonce2Size int
}

// callTimeout bounds how long a request/response round trip (subscribe,
// authorize, submit_share) waits for the pool to reply.
const callTimeout = 30 * time.Second

// rpcRequest is one JSON-RPC line this client writes to the pool.
type rpcRequest struct {
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// rpcError is a JSON-RPC error object as the pool reports it.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// wireMessage decodes any line the pool sends: either a response to a
// request this client issued (ID set, Method empty) or an asynchronous
// notification (Method set, e.g. mining.notify/mining.set_difficulty).
type wireMessage struct {
	ID     *uint64           `json:"id,omitempty"`
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  *rpcError         `json:"error,omitempty"`
}

// Client is a single pool session. All exported methods are safe for
// concurrent use; the mutex guards state, the retained job, and the
// failure reason together since they always change as a unit.
type Client struct {
	transport Transport

	mu           sync.Mutex
	state        State
	failReason   string
	conn         io.ReadWriteCloser
	writer       io.Writer
	job          *MiningJob
	jobConsumed  bool
	extranonce1  []byte
	extranonce2N int

	nextID  atomic.Uint64
	pendMu  sync.Mutex
	pending map[uint64]chan wireMessage

	readDone chan struct{}
}

// New builds a Client bound to the given Transport (nil defaults to TCP).
func New(transport Transport) *Client {
	if transport == nil {
		transport = TCPTransport{}
	}
	return &Client{transport: transport, state: Disconnected, pending: make(map[uint64]chan wireMessage)}
}

// State returns the client's current session state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials addr and transitions Disconnected -> Connecting -> Connected.
// Failure transitions to Failed(reason) and is returned as a PoolConnection
// error. A background goroutine starts reading the connection immediately,
// decoding both request/response traffic and asynchronous notifications.
func (c *Client) Connect(ctx context.Context, addr string, timeout time.Duration) error {
	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()

	conn, err := c.transport.Dial(ctx, addr, timeout)
	if err != nil {
		c.fail(err.Error())
		return errs.New(errs.PoolConnection, "dial %s: %v", addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.writer = conn
	c.state = Connected
	c.mu.Unlock()

	c.readDone = make(chan struct{})
	go c.readLoop(conn, c.readDone)
	return nil
}

// readLoop decodes newline-delimited JSON-RPC from conn until it closes,
// routing responses to their waiting caller and notifications to their
// handler. Exactly one readLoop runs per connection.
func (c *Client) readLoop(conn io.Reader, done chan struct{}) {
	defer close(done)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var msg wireMessage
			if jsonErr := json.Unmarshal(line, &msg); jsonErr == nil {
				c.dispatch(msg)
			}
		}
		if err != nil {
			return
		}
	}
}

// dispatch routes one decoded wire message either to the pending call it
// answers or to the notification handler for its method.
func (c *Client) dispatch(msg wireMessage) {
	if msg.Method != "" {
		c.handleNotification(msg)
		return
	}
	if msg.ID == nil {
		return
	}
	c.pendMu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.pendMu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) handleNotification(msg wireMessage) {
	switch msg.Method {
	case "mining.notify":
		job, ok := decodeNotify(msg.Params)
		if ok {
			c.Notify(job)
		}
	case "mining.set_difficulty":
		if len(msg.Params) == 1 {
			var bits uint32
			if json.Unmarshal(msg.Params[0], &bits) == nil {
				c.SetDifficulty(powcore.TargetFromBits(bits))
			}
		}
	}
}

// decodeNotify parses a mining.notify params array of the form
// [jobID, headerHex, extranonce1Hex, extranonce2Size, targetBits].
func decodeNotify(params []json.RawMessage) (MiningJob, bool) {
	if len(params) < 5 {
		return MiningJob{}, false
	}
	var jobID, headerHex, extranonce1Hex string
	var extranonce2Size int
	var targetBits uint32
	if json.Unmarshal(params[0], &jobID) != nil ||
		json.Unmarshal(params[1], &headerHex) != nil ||
		json.Unmarshal(params[2], &extranonce1Hex) != nil ||
		json.Unmarshal(params[3], &extranonce2Size) != nil ||
		json.Unmarshal(params[4], &targetBits) != nil {
		return MiningJob{}, false
	}
	headerBytes, err := hexutil.ToBytes(headerHex)
	if err != nil || len(headerBytes) != powcore.HeaderSize {
		return MiningJob{}, false
	}
	extranonce1, err := hexutil.ToBytes(extranonce1Hex)
	if err != nil {
		return MiningJob{}, false
	}
	var fixed [powcore.HeaderSize]byte
	copy(fixed[:], headerBytes)
	header := powcore.ParseBlockHeader(fixed)
	return MiningJob{
		JobID:           jobID,
		Header:          header,
		Target:          powcore.TargetFromBits(targetBits),
		Extranonce1:     extranonce1,
		Extranonce2Size: extranonce2Size,
	}, true
}

// call sends a JSON-RPC request and blocks for its matching response, or
// until ctx is done or the connection closes.
func (c *Client) call(ctx context.Context, method string, params []interface{}) (wireMessage, error) {
	c.mu.Lock()
	w := c.writer
	c.mu.Unlock()
	if w == nil {
		return wireMessage{}, errs.New(errs.PoolConnection, "%s: no active connection", method)
	}

	id := c.nextID.Add(1)
	ch := make(chan wireMessage, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()

	req := rpcRequest{ID: id, Method: method, Params: params}
	line, err := json.Marshal(req)
	if err != nil {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
		return wireMessage{}, errs.New(errs.StratumProtocol, "%s: encode request: %v", method, err)
	}
	line = append(line, '\n')

	if _, err := w.Write(line); err != nil {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
		return wireMessage{}, errs.New(errs.PoolConnection, "%s: write request: %v", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return msg, errs.New(errs.StratumProtocol, "%s: pool returned error %d: %s", method, msg.Error.Code, msg.Error.Message)
		}
		return msg, nil
	case <-callCtx.Done():
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
		return wireMessage{}, errs.New(errs.PoolConnection, "%s: timed out waiting for pool response", method)
	}
}

// subscribeResult is the decoded result of a mining.subscribe call:
// [extranonce1Hex, extranonce2Size].
type subscribeResult struct {
	Extranonce1     string
	Extranonce2Size int
}

func decodeSubscribeResult(raw json.RawMessage) (subscribeResult, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) < 2 {
		return subscribeResult{}, fmt.Errorf("malformed subscribe result")
	}
	var extranonce1Hex string
	var extranonce2Size int
	if json.Unmarshal(fields[0], &extranonce1Hex) != nil || json.Unmarshal(fields[1], &extranonce2Size) != nil {
		return subscribeResult{}, fmt.Errorf("malformed subscribe result fields")
	}
	return subscribeResult{Extranonce1: extranonce1Hex, Extranonce2Size: extranonce2Size}, nil
}

// Subscribe sends mining.subscribe and, on the pool's response, transitions
// Connected -> Subscribed, retaining the extranonce1/extranonce2_size the
// pool assigned this session.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != Connected {
		return errs.New(errs.StratumProtocol, "subscribe requires Connected state, got %s", state)
	}

	msg, err := c.call(ctx, "mining.subscribe", nil)
	if err != nil {
		return err
	}
	result, err := decodeSubscribeResult(msg.Result)
	if err != nil {
		return errs.New(errs.StratumProtocol, "subscribe: %v", err)
	}
	extranonce1, err := hexutil.ToBytes(result.Extranonce1)
	if err != nil {
		return errs.New(errs.StratumProtocol, "subscribe: invalid extranonce1: %v", err)
	}

	c.mu.Lock()
	c.extranonce1 = extranonce1
	c.extranonce2N = result.Extranonce2Size
	c.state = Subscribed
	c.mu.Unlock()
	return nil
}

// Authorize sends mining.authorize for worker/password and, on a truthy
// result, transitions Subscribed -> Authorized.
func (c *Client) Authorize(ctx context.Context, worker, password string) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != Subscribed {
		return errs.New(errs.StratumProtocol, "authorize requires Subscribed state, got %s", state)
	}

	msg, err := c.call(ctx, "mining.authorize", []interface{}{worker, password})
	if err != nil {
		return err
	}
	var accepted bool
	if err := json.Unmarshal(msg.Result, &accepted); err != nil {
		return errs.New(errs.StratumProtocol, "authorize: malformed result: %v", err)
	}
	if !accepted {
		c.mu.Lock()
		c.state = Failed
		c.failReason = "authorization rejected"
		c.mu.Unlock()
		return errs.New(errs.PoolConnection, "worker %s rejected by pool", worker)
	}

	c.mu.Lock()
	c.state = Authorized
	c.mu.Unlock()
	return nil
}

// Notify pushes a fresh job, replacing any job the client has not yet
// consumed via GetJob.
func (c *Client) Notify(job MiningJob) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.job = &job
	c.jobConsumed = false
}

// GetJob returns the newest unconsumed job, or (nil, nil) if none has
// arrived since the last call. It fails if the session has not reached
// Connected.
func (c *Client) GetJob() (*MiningJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.atLeastConnected() {
		return nil, errs.New(errs.PoolConnection, "get_job requires a connected session, got %s", c.state)
	}
	if c.job == nil || c.jobConsumed {
		return nil, nil
	}
	c.jobConsumed = true
	return c.job, nil
}

// SubmittedShare is the result of one SubmitShare call: the pool's verdict
// plus a correlation id that ties a submission back to the worker, job, and
// nonce that produced it, independent of submission order.
type SubmittedShare struct {
	Accepted      bool
	CorrelationID string
}

// ShareCorrelationID derives a stable, collision-resistant id from the
// worker, job, and nonce a share was found with, using blake3 rather than
// concatenation so it is safe to log or key a dedup table by.
func ShareCorrelationID(workerID, jobID string, nonce uint32) string {
	h := blake3.New()
	h.Write([]byte(workerID))
	h.Write([]byte{0})
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	var nonceBuf [4]byte
	binary.LittleEndian.PutUint32(nonceBuf[:], nonce)
	h.Write(nonceBuf[:])
	return hexutil.FromBytesNoPrefix(h.Sum(nil))
}

// SubmitShare sends mining.submit to the pool and reports its accept/reject
// verdict along with the share's correlation id. It fails with a
// PoolConnection error when the session is not Authorized.
func (c *Client) SubmitShare(ctx context.Context, workerID, jobID string, extranonce2 []byte, ntime uint32, nonce uint32) (SubmittedShare, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != Authorized {
		return SubmittedShare{}, errs.New(errs.PoolConnection, "submit_share requires Authorized session, got %s", state)
	}

	var ntimeBuf [4]byte
	binary.BigEndian.PutUint32(ntimeBuf[:], ntime)
	var nonceBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], nonce)

	params := []interface{}{
		workerID,
		jobID,
		hexutil.FromBytesNoPrefix(extranonce2),
		hexutil.FromBytesNoPrefix(ntimeBuf[:]),
		hexutil.FromBytesNoPrefix(nonceBuf[:]),
	}
	msg, err := c.call(ctx, "mining.submit", params)
	if err != nil {
		return SubmittedShare{}, err
	}
	var accepted bool
	if err := json.Unmarshal(msg.Result, &accepted); err != nil {
		return SubmittedShare{}, errs.New(errs.StratumProtocol, "submit_share: malformed result: %v", err)
	}
	return SubmittedShare{
		Accepted:      accepted,
		CorrelationID: ShareCorrelationID(workerID, jobID, nonce),
	}, nil
}

// SetDifficulty mutates the active job's target in place.
func (c *Client) SetDifficulty(target powcore.HashTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job != nil {
		c.job.Target = target
	}
}

// Close tears down the transport connection, if any, and waits for the
// read loop it owns to observe the closure and exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.writer = nil
	c.state = Disconnected
	done := c.readDone
	c.mu.Unlock()

	var closeErr error
	if conn != nil {
		closeErr = conn.Close()
	}
	if done != nil {
		<-done
	}
	return closeErr
}

func (c *Client) fail(reason string) {
	c.mu.Lock()
	c.state = Failed
	c.failReason = reason
	c.mu.Unlock()
}

// FailureReason returns the reason recorded when the session last
// transitioned to Failed, or "" if it never has.
func (c *Client) FailureReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failReason
}
