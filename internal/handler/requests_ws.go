package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/pkg/cache"
)

// RequestsFeed streams a business's pending join requests over a websocket.
// The feed polls the store and pushes a fresh snapshot whenever the pending
// set changes, so an admin dashboard sees requests arrive and drain without
// refreshing. Poll results are shared across connections through a short-TTL
// cache keyed by business id.
type RequestsFeed struct {
	svc      BusinessService
	shared   *cache.Cache
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewRequestsFeed(svc BusinessService, interval time.Duration, logger *slog.Logger) *RequestsFeed {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &RequestsFeed{
		svc:      svc,
		shared:   cache.New(),
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Cross-origin policy is enforced by the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Stream handles GET /api/business/{id}/requests/ws. Authorization runs
// before the upgrade so an unauthorized caller gets a plain HTTP error, not
// a dropped socket.
func (f *RequestsFeed) Stream(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, f.logger)
	if !ok {
		return
	}
	businessID := r.PathValue("id")

	pending, err := f.svc.ListJoinRequests(r.Context(), businessID, identity)
	if err != nil {
		writeError(w, f.logger, err)
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// how gorilla surfaces close frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last, err := f.push(conn, pending, nil)
	if err != nil {
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := f.fetch(ctx, businessID, identity)
			if err != nil {
				f.logger.Warn("pending feed poll failed",
					slog.String("business_id", businessID),
					slog.String("error", err.Error()),
				)
				return
			}
			last, err = f.push(conn, pending, last)
			if err != nil {
				return
			}
		}
	}
}

// fetch reads the pending set through the shared cache so many open feeds
// on the same business produce one store query per interval.
func (f *RequestsFeed) fetch(ctx context.Context, businessID string, identity domain.Identity) ([]*domain.Membership, error) {
	key := "pending:" + businessID
	if v, ok := f.shared.Get(key); ok {
		return v.([]*domain.Membership), nil
	}

	pending, err := f.svc.ListJoinRequests(ctx, businessID, identity)
	if err != nil {
		return nil, err
	}
	f.shared.Set(key, pending, f.interval)
	return pending, nil
}

// push writes the snapshot when it differs from the previously sent one and
// returns the serialized form for the next comparison.
func (f *RequestsFeed) push(conn *websocket.Conn, pending []*domain.Membership, last []byte) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":    "pending_requests",
		"pending": pending,
	})
	if err != nil {
		return last, err
	}
	if last != nil && string(payload) == string(last) {
		return last, nil
	}

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return last, err
	}
	return payload, nil
}
