// internal/handlers/session_ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/uno"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// SessionWSHandler upgrades to a WebSocket and pushes the caller's snapshot of the session, first
// on connect and then on every accepted change. The stream is read-only; actions go through the
// HTTP routes.
func SessionWSHandler(logger logrus.FieldLogger, gw *gateway.Gateway, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		player := playerFrom(r)
		if _, err := gw.Snapshot(r.Context(), id, player); err != nil {
			writeErr(w, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithField("session", id).WithError(err).Warn("WebSocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal error")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must use the 'uno' subprotocol")
			return
		}

		fields := logrus.Fields{"session": id, "player": player}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, fields)

		sub, initial, err := subscribeSession(r.Context(), gw, hub, id, player)
		if err != nil {
			middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, fields, err)
			return
		}
		defer hub.Unsubscribe(sub)

		ctx := c.CloseRead(r.Context())
		err = streamSnapshots(ctx, c, sub, initial)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, fields, err)
		if err == nil {
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// subscribeSession registers the viewer with the hub and then takes the snapshot the stream opens
// with, so every change after that snapshot reaches sub.
func subscribeSession(ctx context.Context, gw *gateway.Gateway, hub *Hub, id uuid.UUID, player uno.PlayerID) (*Subscription, uno.Snapshot, error) {
	sub := hub.Subscribe(id, player)
	snap, err := gw.Snapshot(ctx, id, player)
	if err != nil {
		hub.Unsubscribe(sub)
		return nil, uno.Snapshot{}, err
	}
	return sub, snap, nil
}

// streamSnapshots writes initial and then every snapshot from sub until ctx ends. Snapshots older
// than one already written are skipped.
func streamSnapshots(ctx context.Context, c *websocket.Conn, sub *Subscription, initial uno.Snapshot) error {
	if err := writeSnapshot(ctx, c, initial); err != nil {
		return err
	}
	last := initial.Turn

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(context.Cause(ctx), context.Canceled) {
				return nil
			}
			return context.Cause(ctx)
		case snap := <-sub.C:
			if snap.Turn < last {
				continue
			}
			last = snap.Turn
			if err := writeSnapshot(ctx, c, snap); err != nil {
				return err
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeSnapshot(ctx context.Context, c *websocket.Conn, snap uno.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, snap)
}
