package cdp

import (
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
)

// Message is the CDP wire envelope. A response carries an ID matching a
// dispatched request plus a result or error; an event carries a method and no
// ID. Frames with neither marker are never matched by any wait and end up
// discarded by the wait loop.
type Message = cdproto.Message

// newRequest builds the envelope for one dispatch. A nil params map encodes
// as an empty object so the peer always sees a params field.
func newRequest(id int64, method string, params map[string]any) (*Message, error) {
	if params == nil {
		params = map[string]any{}
	}
	buf, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding params for %q: %w", method, err)
	}
	return &Message{
		ID:     id,
		Method: cdproto.MethodType(method),
		Params: easyjson.RawMessage(buf),
	}, nil
}

func encodeMessage(msg *Message) ([]byte, error) {
	buf, err := easyjson.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message %d: %w", msg.ID, err)
	}
	return buf, nil
}

func decodeMessage(buf []byte) (*Message, error) {
	var msg Message
	if err := easyjson.Unmarshal(buf, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &msg, nil
}
