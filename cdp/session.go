package cdp

import (
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wirebird/cdpgo/log"
)

const (
	// DefaultTimeout bounds a wait when the caller supplies no budget of its
	// own. Generous but finite: a forgotten timeout stalls, it doesn't hang.
	DefaultTimeout = 2 * time.Minute

	// closeDrainAttempts caps the acknowledgment drain during Close; with
	// closeDrainWait per attempt the whole handshake is bounded at ~1s.
	closeDrainAttempts = 100
	closeDrainWait     = 10 * time.Millisecond

	readQueueSize = 32
)

// Predicate selects the frame a wait should return.
type Predicate func(*Message) bool

// Session is an established connection to one debuggable target. It owns the
// underlying channel and the request-id counter: ids start at 1 and advance
// once per dispatch, including dispatches whose write fails, so an id is
// never reused within the session's lifetime.
//
// A Session is single-owner state. It must be driven from one goroutine; it
// is not safe for concurrent use.
type Session struct {
	conn   *websocket.Conn
	logger *log.Logger

	msgID int64

	readCh  chan readResult
	done    chan struct{}
	readErr error
	closed  bool
}

type readResult struct {
	buf []byte
	err error
}

func newSession(conn *websocket.Conn, logger *log.Logger) *Session {
	s := &Session{
		conn:   conn,
		logger: logger,
		msgID:  1,
		readCh: make(chan readResult, readQueueSize),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop moves frames from the transport to the session's queue in delivery
// order. It exits on the first read error, which is queued behind any frames
// already received so nothing delivered before the failure is lost.
func (s *Session) readLoop() {
	for {
		_, buf, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case s.readCh <- readResult{err: err}:
				close(s.readCh)
			case <-s.done:
			}
			return
		}
		select {
		case s.readCh <- readResult{buf: buf}:
		case <-s.done:
			return
		}
	}
}

// Send dispatches a method call and blocks until its response arrives,
// waiting up to DefaultTimeout. Frames for other ids observed in the meantime
// are discarded. A response carrying an error payload is reported as a
// *RequestRejectedError, so callers can tell "the peer understood but
// declined" from "the channel is broken"; rejected requests are never retried
// here.
func (s *Session) Send(method string, params map[string]any) (*Message, error) {
	return s.SendWithTimeout(method, params, DefaultTimeout)
}

// SendWithTimeout is Send with a caller-supplied response budget. A timeout
// <= 0 selects DefaultTimeout.
func (s *Session) SendWithTimeout(method string, params map[string]any, timeout time.Duration) (*Message, error) {
	id := s.msgID
	msg, err := newRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	err = s.write(msg)
	// The peer may have seen part of a failed write; the id is burned either way.
	s.msgID++
	if err != nil {
		return nil, err
	}

	res, err := s.WaitFor(func(m *Message) bool {
		return m.ID == id && (m.Error != nil || len(m.Result) != 0)
	}, timeout)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, &RequestRejectedError{Frame: res}
	}
	return res, nil
}

func (s *Session) write(msg *Message) error {
	buf, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	s.logger.Debugf("cdp:send", "-> id:%d method:%q", msg.ID, msg.Method)
	if err := s.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
		return &NetworkError{Cause: err}
	}
	return nil
}

// ReceiveOne returns the next frame if one has already arrived. It never
// blocks: with nothing queued it reports ErrNoMessage.
func (s *Session) ReceiveOne() (*Message, error) {
	select {
	case r, ok := <-s.readCh:
		return s.consume(r, ok)
	default:
		return nil, ErrNoMessage
	}
}

// WaitFor blocks until a frame matching pred arrives, the transport or a
// decode fails, or the timeout elapses. Non-matching frames are dropped, not
// requeued: the channel is multiplexed and the current wait is its only
// consumer, so traffic it doesn't care about is intentionally let go. An
// exhausted timeout reports ErrNoMessage, the same value ReceiveOne uses for
// "nothing there right now". A timeout <= 0 selects DefaultTimeout.
func (s *Session) WaitFor(pred Predicate, timeout time.Duration) (*Message, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case r, ok := <-s.readCh:
			msg, err := s.consume(r, ok)
			if err != nil {
				return nil, err
			}
			if pred(msg) {
				return msg, nil
			}
			s.logger.Debugf("cdp:recv", "discarding unmatched frame id:%d method:%q", msg.ID, msg.Method)
		case <-deadline.C:
			return nil, ErrNoMessage
		}
	}
}

// WaitForEvent blocks until the named event arrives. Frames with a different
// method, or with no method at all, are skipped without error.
func (s *Session) WaitForEvent(event string, timeout time.Duration) (*Message, error) {
	return s.WaitFor(func(m *Message) bool {
		return string(m.Method) == event
	}, timeout)
}

func (s *Session) consume(r readResult, ok bool) (*Message, error) {
	if !ok {
		err := s.readErr
		if err == nil {
			err = net.ErrClosed
		}
		return nil, &NetworkError{Cause: err}
	}
	if r.err != nil {
		s.readErr = r.err
		return nil, &NetworkError{Cause: r.err}
	}
	msg, err := decodeMessage(r.buf)
	if err != nil {
		return nil, err
	}
	s.logger.Debugf("cdp:recv", "<- id:%d method:%q", msg.ID, msg.Method)
	return msg, nil
}

// Close runs the cooperative shutdown handshake and releases the transport.
// It is idempotent and bounded: the close frame is sent best-effort, the
// acknowledgment drain gives up after a fixed budget, and the transport is
// torn down regardless. Safe to defer on every path.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err == nil {
		s.drainClose()
	} else {
		s.logger.Debugf("cdp:close", "close frame not sent: %v", err)
	}

	close(s.done)
	if cerr := s.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// drainClose waits for the peer to acknowledge the close frame; the read loop
// sees the acknowledgment as a close error and shuts the queue. A peer that
// never acknowledges only costs the fixed attempt budget.
func (s *Session) drainClose() {
	for i := 0; i < closeDrainAttempts; i++ {
		select {
		case r, ok := <-s.readCh:
			if !ok {
				return
			}
			if r.err != nil {
				s.readErr = r.err
				return
			}
			// frames still in flight ahead of the acknowledgment are dropped
		case <-time.After(closeDrainWait):
		}
	}
	s.logger.Debugf("cdp:close", "peer never acknowledged close, giving up")
}
