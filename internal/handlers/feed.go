// internal/handlers/feed.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/promptbattle/internal/battle"
	"github.com/jason-s-yu/promptbattle/internal/middleware"
	"github.com/jason-s-yu/promptbattle/internal/realtime"
	"github.com/sirupsen/logrus"
)

const (
	feedSubprotocol  = "room-feed"
	feedWriteTimeout = 5 * time.Second
	feedPingInterval = 30 * time.Second
)

// RoomFeedHandler streams row changes of one room over a websocket. The first message is a
// SNAPSHOT carrying the full room state; afterwards every change is forwarded as it happens.
// The feed is one-way and, like GET /rooms/{id}, needs no token; client messages are ignored.
func RoomFeedHandler(logger *logrus.Logger, svc *battle.Service, originPatterns []string) http.HandlerFunc {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, ok := parseRoomID(w, r.PathValue("id"))
		if !ok {
			return
		}
		if _, err := svc.RoomState(r.Context(), roomID); err != nil {
			writeServiceError(w, r, err)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{feedSubprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != feedSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the room-feed subprotocol")
			return
		}

		// subscribe before the snapshot so no change slips in between
		ctx := c.CloseRead(r.Context())
		sub, err := svc.Broker().Subscribe(ctx, roomID)
		if err != nil {
			logger.WithError(err).WithField("room_id", roomID).Error("feed subscribe failed")
			c.Close(websocket.StatusInternalError, "subscribe failed")
			return
		}
		defer sub.Close()

		state, err := svc.RoomState(ctx, roomID)
		if err != nil {
			c.Close(InvalidRoomIDError, "room does not exist")
			return
		}
		snapshot, err := realtime.NewEvent(realtime.EventSnapshot, realtime.TableRooms, roomID, state)
		if err != nil || writeEvent(ctx, c, snapshot) != nil {
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		err = pumpFeed(ctx, c, sub)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		if err == nil {
			c.Close(websocket.StatusNormalClosure, "")
		}
	}
}

// pumpFeed forwards events until the client leaves or the subscription ends.
func pumpFeed(ctx context.Context, c *websocket.Conn, sub *realtime.Subscription) error {
	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, c, ev); err != nil {
				return err
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, ev realtime.Event) error {
	wctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, ev)
}
