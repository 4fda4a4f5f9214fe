package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/angelmondragon/quotedesk-backend/api/responses"
	"github.com/angelmondragon/quotedesk-backend/internal/events"
	"github.com/angelmondragon/quotedesk-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/quotedesk-backend/pkg/errors"
	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

const eventWriteTimeout = 10 * time.Second

type EventSource interface {
	Subscribe(names []string, buffer int) *events.Subscription
}

// EventsStream upgrades to a WebSocket and streams bus events as JSON text
// frames. ?events=a,b narrows the stream; no filter means every event.
// Delivery is best effort: a client that falls behind loses events.
func EventsStream(hub EventSource, cfg config.EventsConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := parseEventNames(r.URL.Query().Get("events"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "events.upgrade_failed")
			}
			return
		}
		defer conn.Close()
		// the server's read/write timeouts survive the hijack
		_ = conn.SetDeadline(time.Time{})

		sub := hub.Subscribe(names, cfg.SubscriberBuffer)
		defer sub.Close()

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithField(ctx, "events", strings.Join(names, ","))
			logg.Info(ctx, "events.stream_opened")
			defer logg.Info(ctx, "events.stream_closed")
		}

		// the read side answers control frames and notices the client leaving;
		// both sides write through writeMu so frames never interleave
		var writeMu sync.Mutex
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			defer cancel()
			_ = drainClient(conn, &writeMu)
		}()

		streamEvents(ctx, conn, &writeMu, sub.C, cfg.PingInterval)
	}
}

// drainClient reads until the client goes away, replying to ping and close
// frames under writeMu and discarding any data the client sends.
func drainClient(conn net.Conn, writeMu *sync.Mutex) error {
	control := wsutil.ControlFrameHandler(conn, ws.StateServerSide)
	locked := func(h ws.Header, r io.Reader) error {
		// control payloads are at most 125 bytes; read them before waiting on
		// the writer so the socket keeps draining
		payload, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return control(h, bytes.NewReader(payload))
	}
	rd := &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: locked,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := locked(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return err
		}
	}
}

func streamEvents(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, in <-chan events.Event, pingInterval time.Duration) {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(op ws.OpCode, payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		return wsutil.WriteServerMessage(conn, op, payload)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := write(ws.OpText, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

func parseEventNames(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var names []string
	var unknown []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !events.IsKnown(name) {
			unknown = append(unknown, name)
			continue
		}
		names = append(names, name)
	}
	if len(unknown) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown event names").
			WithDetails(map[string]any{"unknown": unknown, "known": events.Known})
	}
	return names, nil
}
