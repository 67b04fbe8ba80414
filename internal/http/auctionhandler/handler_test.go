package auctionhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctioncore/internal/database/memstore"
	"auctioncore/internal/services/auction"
)

func newEngine(svc auction.IAuctionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(svc).Register(r)
	return r
}

func do(r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	r := newEngine(auction.NewAuctionService(memstore.New(), 100))
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	w := do(r, http.MethodPost, "/auctions", "1",
		fmt.Sprintf(`{"title":"camera","start_price":1000,"end_time":%q}`, end))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a auction.Auction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, int64(100), a.BidIncrement)
	path := fmt.Sprintf("/auctions/%d", a.ID)

	w = do(r, http.MethodPost, path+"/bids", "2", `{"bid_price":1100}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt auction.BidReceipt
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, int64(1100), receipt.NewPrice)
	assert.Positive(t, receipt.Remaining)

	w = do(r, http.MethodPost, path+"/bids", "3", `{"bid_price":1150}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, path+"/bids", "1", `{"bid_price":5000}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, path+"/bids", "3", `{"bid_price":1200}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, path+"/bids", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var bids []auction.Bid
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bids))
	require.Len(t, bids, 2)
	assert.Equal(t, int64(1200), bids[1].Price)

	w = do(r, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, int64(1200), a.CurrentPrice)

	w = do(r, http.MethodGet, "/auctions?status=BIDDING", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []auction.Auction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestRequestValidation(t *testing.T) {
	r := newEngine(auction.NewAuctionService(memstore.New(), 100))

	cases := []struct {
		name, method, path, user, body string
		want                           int
	}{
		{"missing user", http.MethodPost, "/auctions/1/bids", "", `{"bid_price":1100}`, http.StatusUnauthorized},
		{"bad user", http.MethodPost, "/auctions/1/bids", "abc", `{"bid_price":1100}`, http.StatusUnauthorized},
		{"bad id", http.MethodGet, "/auctions/x", "", "", http.StatusBadRequest},
		{"zero price", http.MethodPost, "/auctions/1/bids", "2", `{"bid_price":0}`, http.StatusBadRequest},
		{"huge price", http.MethodPost, "/auctions/1/bids", "2", `{"bid_price":9223372036854775807}`, http.StatusBadRequest},
		{"huge start", http.MethodPost, "/auctions", "1", `{"title":"x","start_price":9223372036854775807,"end_time":"2999-01-01T00:00:00Z"}`, http.StatusBadRequest},
		{"unknown auction", http.MethodPost, "/auctions/42/bids", "2", `{"bid_price":1100}`, http.StatusNotFound},
		{"bad status", http.MethodGet, "/auctions?status=RUNNING", "", "", http.StatusBadRequest},
		{"past end", http.MethodPost, "/auctions", "1", `{"title":"x","start_price":10,"end_time":"2001-01-01T00:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

// stubService fails every bid with err.
type stubService struct {
	auction.IAuctionService
	err error
}

func (s stubService) PlaceBid(context.Context, int64, int64, int64) (*auction.BidReceipt, error) {
	return nil, s.err
}

func TestPlaceBidErrorMapping(t *testing.T) {
	cases := []struct {
		err       error
		want      int
		retryable bool
	}{
		{auction.ErrBidConflict, http.StatusConflict, true},
		{auction.ErrAuctionExpired, http.StatusGone, false},
		{auction.ErrAuctionNotBiddable, http.StatusGone, false},
		{auction.ErrBidBelowIncrement, http.StatusBadRequest, false},
		{auction.ErrPriceOutOfRange, http.StatusBadRequest, false},
		{fmt.Errorf("insert bid: %w", errors.New("connection refused")), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newEngine(stubService{err: tc.err})
			w := do(r, http.MethodPost, "/auctions/1/bids", "2", `{"bid_price":1500}`)
			assert.Equal(t, tc.want, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.retryable, resp.Retryable)
			assert.NotEmpty(t, resp.Error)
		})
	}
}
