package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	eventTimeout   = 1900 * time.Millisecond
	maxMessageSize = 1024
)

var (
	errBadPayload   = errors.New("bad_payload")
	errInvalidPrice = errors.New("invalid_bid_price")
)

type WsServer struct {
	hub        *Hub
	subMgr     *subscriptionManager
	router     *Router
	upgrader   websocket.Upgrader
	auctionSvc auction.IAuctionService
}

// NewWsServer wires the event router. rdc may be nil, in which case clients can
// still bid but receive no live notifications.
func NewWsServer(h *Hub, rdc *redis.Client, auctionSvc auction.IAuctionService) *WsServer {
	srv := &WsServer{
		hub:    h,
		router: NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev‑only
		},
		auctionSvc: auctionSvc,
	}
	if rdc != nil {
		srv.subMgr = newSubscriptionManager(rdc, h)
	}
	srv.registerHandlers()
	return srv
}

// Handle is the gin entry point for GET /ws?user_id=<id>.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	userID, err := strconv.ParseInt(ginCtx.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	conn := newClientConn(userID, rawConn)
	s.hub.Join(userID, conn)
	if s.subMgr != nil {
		s.subMgr.Subscribe(userID) // no-op when the user already has a tab open
	}
	zap.L().Debug("ws.joined", zap.Int64("user_id", userID))

	done := make(chan struct{})
	go s.reader(conn, done)
	go s.pinger(conn, done)
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		"auctions/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*auction.BidReceipt, error) {
			if req.BidPrice <= 0 {
				return nil, errInvalidPrice
			}
			return s.auctionSvc.PlaceBid(ctx, req.AuctionID, cc.UserID, req.BidPrice)
		},
	)
	Register(
		s.router,
		"auctions/get",
		func(ctx context.Context, _ *ConnContext, req AuctionRequest) (*auction.Auction, error) {
			return s.auctionSvc.GetAuction(ctx, req.AuctionID)
		},
	)
}

func (s *WsServer) reader(conn *clientConn, done chan struct{}) {
	defer func() {
		close(done)
		s.hub.Leave(conn.userID, conn)
		if s.subMgr != nil {
			s.subMgr.Unsubscribe(conn.userID)
		}
	}()

	cc := &ConnContext{UserID: conn.userID, Server: s}

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.Int64("user_id", conn.userID), zap.Error(err))
			}
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": eventError,
				"body":  errorBody(env.Event, err),
			})
			continue
		}

		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		}
	}
}

func errorBody(event string, err error) ErrorBody {
	body := ErrorBody{Error: err.Error(), Retryable: auction.IsRetryable(err)}
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		body.Code = "not_found"
	case errors.Is(err, auction.ErrAuctionNotBiddable):
		body.Code = "not_biddable"
	case errors.Is(err, auction.ErrAuctionExpired):
		body.Code = "expired"
	case errors.Is(err, auction.ErrSelfBid):
		body.Code = "self_bid"
	case errors.Is(err, auction.ErrBidBelowIncrement):
		body.Code = "below_increment"
	case errors.Is(err, auction.ErrPriceOutOfRange):
		body.Code = "price_out_of_range"
	case errors.Is(err, auction.ErrBidConflict):
		body.Code = "conflict"
	case errors.Is(err, errUnknownEvent), errors.Is(err, errBadPayload), errors.Is(err, errInvalidPrice):
		body.Code = err.Error()
	default:
		body.Code = "internal"
		body.Error = "internal error"
		zap.L().Error("ws.handler", zap.String("event", event), zap.Error(err))
	}
	return body
}
