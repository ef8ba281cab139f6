package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait    = 10 * time.Second
	bidTimeout   = 5 * time.Second
	maxFrameSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, now time.Time) (*domain.Bid, error)
}

type ListingReader interface {
	GetListing(ctx context.Context, listingID string) (*domain.Listing, error)
}

// WebSocketHandler serves the live feed of a single listing.
type WebSocketHandler struct {
	bids        BidPlacer
	listings    ListingReader
	connManager domain.ConnectionManager
	clock       domain.Clock
	log         logger.Logger
}

func NewWebSocketHandler(bids BidPlacer, listings ListingReader,
	connManager domain.ConnectionManager, clock domain.Clock, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		listings:    listings,
		connManager: connManager,
		clock:       clock,
		log:         log,
	}
}

// Router mounts the feed at /ws/listings/{listingID}.
func (h *WebSocketHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws/listings/{listingID}", h.HandleConnection).Methods(http.MethodGet)
	return r
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	listingID := mux.Vars(r)["listingID"]

	listing, err := h.listings.GetListing(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "listing not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load listing", "listing_id", listingID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !listing.AcceptsBidsAt(h.clock.Now()) {
		h.log.Info("Rejected connection - listing has ended", "listing_id", listingID)
		http.Error(w, "listing is not active", http.StatusConflict)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameSize)

	wsConn := NewWebSocketConnection(conn, userID, listingID, h.log)
	if err := h.connManager.RegisterConnection(userID, listingID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	go h.handleMessages(wsConn)
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount string `json:"amount,omitempty"`
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn.UserID(), conn.ListingID())
		_ = conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Failed to read message", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		case "place_bid":
			h.handleBidMessage(conn, msg)
		default:
			_ = conn.Send(map[string]string{"type": "error", "message": "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg clientMessage) {
	amount, err := decimal.NewFromString(msg.Amount)
	if err != nil {
		_ = conn.Send(map[string]string{"type": "error", "message": "invalid amount format"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	bid, err := h.bids.PlaceBid(ctx, conn.ListingID(), conn.UserID(), amount, h.clock.Now())
	if err != nil {
		reply := map[string]interface{}{"type": "bid_rejected", "message": err.Error()}
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			reply["minimum_bid"] = tooLow.Minimum.StringFixed(2)
		}
		_ = conn.Send(reply)
		return
	}
	_ = conn.Send(map[string]interface{}{
		"type":   "bid_placed",
		"bid_id": bid.ID,
		"amount": bid.Amount.StringFixed(2),
	})
}

// WebSocketConnection serializes writes; gorilla allows one writer at a time.
type WebSocketConnection struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	userID    string
	listingID string
	log       logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, userID, listingID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		listingID: listingID,
		log:       log,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) ListingID() string {
	return wsc.listingID
}
