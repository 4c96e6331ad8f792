package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirebird/cdpgo/log"
)

// newSessionTest serves a websocket endpoint with the given handler and
// returns an established session to it.
func newSessionTest(t *testing.T, serverHandler func(conn *websocket.Conn)) *Session {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var upgrader websocket.Upgrader
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close() //nolint:errcheck
		serverHandler(conn)
	}))
	t.Cleanup(srv.Close)

	conn, err := establish(context.Background(), "ws://"+srv.Listener.Addr().String(), log.NullLogger())
	require.NoError(t, err)

	s := newSession(conn, log.NullLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type request struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

func readRequest(t *testing.T, conn *websocket.Conn) request {
	t.Helper()
	_, buf, err := conn.ReadMessage()
	require.NoError(t, err)
	var req request
	require.NoError(t, json.Unmarshal(buf, &req))
	return req
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// echoResults responds to every request with an empty result for its id, then
// keeps reading so the client's close frame gets acknowledged.
func echoResults(t *testing.T) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req request
			require.NoError(t, json.Unmarshal(buf, &req))
			writeFrame(t, conn, fmt.Sprintf(`{"id":%d,"result":{}}`, req.ID))
		}
	}
}

func TestSendRequestIDsAreMonotonic(t *testing.T) {
	s := newSessionTest(t, echoResults(t))

	for want := int64(1); want <= 3; want++ {
		res, err := s.Send("Network.enable", nil)
		require.NoError(t, err)
		assert.Equal(t, want, res.ID)
	}
	assert.Equal(t, int64(4), s.msgID)
}

func TestSendFailureStillAdvancesID(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage() // wait for the client to go away
	})

	// break the transport out from under the session
	require.NoError(t, s.conn.Close())

	_, err := s.Send("Network.enable", nil)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, int64(2), s.msgID)
}

func TestSendParamsReachThePeer(t *testing.T) {
	got := make(chan request, 1)
	s := newSessionTest(t, func(conn *websocket.Conn) {
		req := readRequest(t, conn)
		got <- req
		writeFrame(t, conn, fmt.Sprintf(`{"id":%d,"result":{"frameId":"f1"}}`, req.ID))
		_, _, _ = conn.ReadMessage()
	})

	res, err := s.Send("Page.navigate", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.Contains(t, string(res.Result), "frameId")

	req := <-got
	assert.Equal(t, "Page.navigate", req.Method)
	assert.Equal(t, "https://example.com", req.Params["url"])
}

func TestSendNilParamsEncodeAsEmptyObject(t *testing.T) {
	got := make(chan request, 1)
	s := newSessionTest(t, func(conn *websocket.Conn) {
		req := readRequest(t, conn)
		got <- req
		writeFrame(t, conn, fmt.Sprintf(`{"id":%d,"result":{}}`, req.ID))
		_, _, _ = conn.ReadMessage()
	})

	_, err := s.Send("Network.getAllCookies", nil)
	require.NoError(t, err)

	req := <-got
	require.NotNil(t, req.Params)
	assert.Empty(t, req.Params)
}

func TestSendSkipsForeignFrames(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		req := readRequest(t, conn)
		// a response for an id nobody asked about, then an event, then the answer
		writeFrame(t, conn, `{"id":999,"result":{}}`)
		writeFrame(t, conn, `{"method":"Network.dataReceived","params":{}}`)
		writeFrame(t, conn, fmt.Sprintf(`{"id":%d,"result":{}}`, req.ID))
		_, _, _ = conn.ReadMessage()
	})

	res, err := s.Send("Network.enable", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
}

func TestSendRequestRejected(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		req := readRequest(t, conn)
		writeFrame(t, conn, fmt.Sprintf(
			`{"id":%d,"error":{"code":-32601,"message":"'Bogus.method' wasn't found"}}`, req.ID))
		_, _, _ = conn.ReadMessage()
	})

	_, err := s.Send("Bogus.method", nil)
	var rejected *RequestRejectedError
	require.ErrorAs(t, err, &rejected)
	require.NotNil(t, rejected.Frame)
	assert.Equal(t, int64(1), rejected.Frame.ID)
	assert.Contains(t, rejected.Frame.Error.Message, "wasn't found")
}

func TestSendWithTimeoutHonorsBudget(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		// swallow the request, never answer
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	start := time.Now()
	_, err := s.SendWithTimeout("Network.enable", nil, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoMessage)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(2), s.msgID)
}

func TestReceiveOneDoesNotBlock(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	_, err := s.ReceiveOne()
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceiveOneReturnsQueuedFrame(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		writeFrame(t, conn, `{"method":"Page.loadEventFired","params":{}}`)
		_, _, _ = conn.ReadMessage()
	})

	var (
		msg *Message
		err error
	)
	require.Eventually(t, func() bool {
		msg, err = s.ReceiveOne()
		return !errors.Is(err, ErrNoMessage)
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Page.loadEventFired", string(msg.Method))
}

func TestWaitForEventSkipsOtherTraffic(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		writeFrame(t, conn, `{"method":"Network.requestWillBeSent","params":{}}`)
		writeFrame(t, conn, `{"foo":"neither response nor event"}`)
		writeFrame(t, conn, `{"method":"Network.dataReceived","params":{}}`)
		_, _, _ = conn.ReadMessage()
	})

	msg, err := s.WaitForEvent("Network.dataReceived", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Network.dataReceived", string(msg.Method))
}

func TestWaitForTimeoutIsBounded(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
	})

	start := time.Now()
	_, err := s.WaitFor(func(*Message) bool { return false }, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoMessage)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForSurfacesMalformedFrames(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		writeFrame(t, conn, `{{not json`)
		_, _, _ = conn.ReadMessage()
	})

	_, err := s.WaitFor(func(*Message) bool { return true }, time.Second)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestWaitForSurfacesTransportFailure(t *testing.T) {
	s := newSessionTest(t, func(conn *websocket.Conn) {
		// drop the connection without a close handshake
		_ = conn.Close()
	})

	_, err := s.WaitFor(func(*Message) bool { return true }, time.Second)
	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestCloseIsBoundedWithoutAck(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	s := newSessionTest(t, func(conn *websocket.Conn) {
		<-block // never read, never acknowledge the close frame
	})

	start := time.Now()
	require.NotPanics(t, func() { _ = s.Close() })
	assert.Less(t, time.Since(start), 5*time.Second)

	// a second close is a no-op
	assert.NoError(t, s.Close())
}

func TestCloseCompletesWithCooperativePeer(t *testing.T) {
	s := newSessionTest(t, echoResults(t))

	_, err := s.Send("Network.enable", nil)
	require.NoError(t, err)

	start := time.Now()
	_ = s.Close()
	assert.Less(t, time.Since(start), time.Second)
}
