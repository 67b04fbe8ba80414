package auctionhandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

// UserHeader carries the caller's id. Authentication happens upstream.
const UserHeader = "X-User-ID"

var (
	errMissingUser = errors.New("missing or invalid " + UserHeader + " header")
	errBadID       = errors.New("auction id must be a positive integer")
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/auctions", h.create)
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/bids", h.bids)
	r.POST("/auctions/:id/bids", h.bid)
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.GetHeader(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: errMissingUser.Error()})
		return 0, false
	}
	return id, true
}

func auctionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: errBadID.Error()})
		return 0, false
	}
	return id, true
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auction.ErrAuctionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrSelfBid):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrAuctionExpired), errors.Is(err, auction.ErrAuctionNotBiddable):
		status = http.StatusGone
	case errors.Is(err, auction.ErrBidConflict):
		status = http.StatusConflict
	case auction.IsValidation(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("http.handler", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Retryable: auction.IsRetryable(err)})
}

// @Summary		Create an auction
// @Description	Seller lists an item. The bid increment is derived from the start price.
// @Tags			Auctions
// @Param			X-User-ID	header		int					true	"Seller ID"
// @Param			body		body		CreateAuctionBody	true	"Auction payload"
// @Success		201			{object}	auction.Auction
// @Failure		400			{object}	ErrorResponse
// @Failure		401			{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	seller, ok := userID(c)
	if !ok {
		return
	}
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	a, err := h.svc.CreateAuction(c.Request.Context(), seller, body.Title, body.StartPrice, body.EndTime)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary		Get auction details
// @Description	Returns full information about a single auction.
// @Tags			Auctions
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{object}	auction.Auction
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetAuction(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of auctions, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(BIDDING,SUCCESS,FAIL)
// @Param			limit	query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		auction.Auction
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.svc.ListAuctions(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		List bids
// @Description	Returns the bid ledger of an auction in placement order.
// @Tags			Bids
// @Param			id	path		int	true	"Auction ID"
// @Success		200	{array}		auction.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	out, err := h.svc.ListBids(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Place a bid
// @Description	Bidder offers at least the current price plus the auction's increment.
// @Description	A 409 response is retryable after refreshing the price.
// @Tags			Bids
// @Param			id			path		int				true	"Auction ID"
// @Param			X-User-ID	header		int				true	"Bidder ID"
// @Param			body		body		PlaceBidBody	true	"Bid payload"
// @Success		201			{object}	auction.BidReceipt
// @Failure		400			{object}	ErrorResponse
// @Failure		403			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Failure		409			{object}	ErrorResponse
// @Failure		410			{object}	ErrorResponse
// @Router			/auctions/{id}/bids [post]
func (h *Handler) bid(c *gin.Context) {
	bidder, ok := userID(c)
	if !ok {
		return
	}
	id, ok := auctionID(c)
	if !ok {
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	receipt, err := h.svc.PlaceBid(c.Request.Context(), id, bidder, body.BidPrice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}
