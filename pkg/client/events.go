package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Event names the server streams.
const (
	EventQuoteItemsUpdated          = "quote.items_updated"
	EventPartsListItemsUpdated      = "parts_list.items_updated"
	EventAnalysisStarted            = "ai_analysis.started"
	EventAnalysisCompleted          = "ai_analysis.completed"
	EventAnalysisFailed             = "ai_analysis.failed"
	EventActivitySuggestionsUpdated = "activity.suggestions_updated"
)

type Event struct {
	Name       string            `json:"name"`
	Payload    map[string]string `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const streamBuffer = 16

// Stream is a live event subscription. Events arrive on C until the
// connection drops or Close is called; Err then reports why.
type Stream struct {
	C <-chan Event

	conn   net.Conn
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Subscribe opens the event WebSocket. With no names every event is
// streamed. Delivery is best effort: events published while the stream is
// disconnected or slow are not replayed.
func (c *Client) Subscribe(ctx context.Context, names ...string) (*Stream, error) {
	target, err := c.eventsURL(names)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", c.agent)
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := ws.Dialer{
		Header:  ws.HandshakeHeaderHTTP(header),
		Timeout: defaultTimeout,
	}

	conn, br, _, err := dialer.Dial(ctx, target)
	if err != nil {
		var status ws.StatusError
		if errors.As(err, &status) {
			return nil, &APIError{Status: int(status), Message: "event stream handshake rejected"}
		}
		return nil, fmt.Errorf("dial events: %w", err)
	}

	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, streamBuffer)
	s := &Stream{C: out, conn: conn, cancel: cancel, done: make(chan struct{})}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go s.read(ctx, struct {
		io.Reader
		io.Writer
	}{r, conn}, out, br)
	return s, nil
}

func (s *Stream) read(ctx context.Context, rw io.ReadWriter, out chan<- Event, br *bufio.Reader) {
	defer close(s.done)
	defer close(out)
	defer func() {
		if br != nil {
			ws.PutReader(br)
		}
	}()

	for {
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			if ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}
		if op != ws.OpText {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Err is the read error that ended the stream, nil after a clean Close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Done() <-chan struct{} { return s.done }

// Close sends a close frame and waits for the reader to exit.
func (s *Stream) Close() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = wsutil.WriteClientMessage(s.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	s.cancel()
	<-s.done
	return nil
}

func (c *Client) eventsURL(names []string) (string, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q for events", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/events"
	if len(names) > 0 {
		u.RawQuery = url.Values{"events": {strings.Join(names, ",")}}.Encode()
	}
	return u.String(), nil
}
