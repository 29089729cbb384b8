package bidding

import (
	"errors"
	"testing"
	"time"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestEvaluateBid(t *testing.T) {
	t.Parallel()

	now := t0.Add(time.Minute)
	open := liveAuction("a1", t0, t0.Add(5*time.Minute))

	withBid := func(amount string, at time.Time) *models.Bid {
		return &models.Bid{BidID: "hb", AuctionID: "a1", BidderID: "u0", Amount: dec(amount), CreatedAt: at}
	}

	ended := open
	past := t0.Add(-time.Second)
	ended.EndTime = &past

	setup := open
	setup.State = models.StateSetup
	setup.StartTime, setup.EndTime = nil, nil

	finished := open
	finished.State = models.StateFinished

	flagged := open
	flagged.InstantBuy = true

	instant := open
	instant.InstantBuyPrice = decimal.NewNullDecimal(dec("100"))

	noIncrement := open
	noIncrement.MinBid = decimal.Zero

	free := open
	free.StartingPrice = decimal.Zero

	tests := []struct {
		name        string
		auction     models.Auction
		highest     *models.Bid
		amount      string
		wantErr     error
		wantAmount  string
		wantInstant bool
		wantMinReq  string
	}{
		{name: "first_bid_below_starting_price", auction: open, amount: "9.99", wantErr: biddingerrors.ErrBidTooLow, wantMinReq: "10.00"},
		{name: "first_bid_at_starting_price", auction: open, amount: "10.00", wantAmount: "10.00"},
		{name: "below_highest_plus_increment", auction: open, highest: withBid("10", t0), amount: "11.99", wantErr: biddingerrors.ErrBidTooLow, wantMinReq: "12.00"},
		{name: "exactly_highest_plus_increment", auction: open, highest: withBid("10", t0), amount: "12.00", wantAmount: "12.00"},
		{name: "equal_to_highest_is_too_low", auction: open, highest: withBid("20", t0), amount: "20", wantErr: biddingerrors.ErrBidTooLow, wantMinReq: "22.00"},
		{name: "unset_increment_uses_cent_floor", auction: noIncrement, highest: withBid("20", t0), amount: "20.01", wantAmount: "20.01"},
		{name: "unset_increment_rejects_equal", auction: noIncrement, highest: withBid("20", t0), amount: "20.00", wantErr: biddingerrors.ErrBidTooLow, wantMinReq: "20.01"},
		{name: "free_start_accepts_any_first_bid", auction: free, amount: "0.01", wantAmount: "0.01"},
		{name: "setup_auction", auction: setup, amount: "50", wantErr: biddingerrors.ErrBidNotAllowed},
		{name: "deadline_passed_before_sweep", auction: ended, amount: "50", wantErr: biddingerrors.ErrBidNotAllowed},
		{name: "finished_auction", auction: finished, amount: "50", wantErr: biddingerrors.ErrBidNotAllowed},
		{name: "instant_buy_flag_set", auction: flagged, amount: "50", wantErr: biddingerrors.ErrBidNotAllowed},
		{name: "instant_buy_clamps_amount", auction: instant, highest: withBid("20", t0), amount: "150", wantAmount: "100", wantInstant: true},
		{name: "instant_buy_at_threshold", auction: instant, amount: "100.00", wantAmount: "100", wantInstant: true},
		{name: "instant_buy_overrides_increment", auction: func() models.Auction { a := instant; a.MinBid = dec("50"); return a }(), highest: withBid("90", t0), amount: "100", wantAmount: "100", wantInstant: true},
		{name: "below_instant_buy_is_normal", auction: instant, highest: withBid("20", t0), amount: "99.99", wantAmount: "99.99"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			decision, err := evaluateBid(tc.auction, tc.highest, dec(tc.amount), now)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				var rej *biddingerrors.BidRejection
				require.True(t, errors.As(err, &rej))
				if tc.wantMinReq != "" {
					require.Equal(t, tc.wantMinReq, rej.MinRequired.StringFixed(2))
					require.Equal(t, dec(tc.amount).StringFixed(2), rej.Details()["amount"])
				}
				return
			}

			require.NoError(t, err)
			require.True(t, dec(tc.wantAmount).Equal(decision.amount), "want %s got %s", tc.wantAmount, decision.amount)
			require.Equal(t, tc.wantInstant, decision.instantBuy)
		})
	}
}

func TestEvaluateBid_NotAllowedPayload(t *testing.T) {
	t.Parallel()

	a := liveAuction("a1", t0, t0.Add(time.Minute))
	_, err := evaluateBid(a, nil, dec("50"), t0.Add(2*time.Minute))

	var rej *biddingerrors.BidRejection
	require.True(t, errors.As(err, &rej))
	details := rej.Details()
	require.Equal(t, "live", details["state"])
	require.Equal(t, true, details["has_ended"])
	require.Equal(t, false, details["instant_buy"])
	require.Equal(t, "2025-06-01T10:01:00Z", details["end_time"])
}

func TestMinimumRequired(t *testing.T) {
	t.Parallel()

	require.Equal(t, "10.00", minimumRequired(dec("10"), decimal.Zero, dec("2")).StringFixed(2))
	require.Equal(t, "2.00", minimumRequired(decimal.Zero, decimal.Zero, dec("2")).StringFixed(2))
	require.Equal(t, "22.00", minimumRequired(dec("10"), dec("20"), dec("2")).StringFixed(2))
	require.Equal(t, "30.00", minimumRequired(dec("30"), dec("20"), dec("2")).StringFixed(2))
}
