package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSpotPrice_Base(t *testing.T) {
	c := DefaultCurve()
	assert.True(t, c.SpotPrice(0).Equal(dec("10.00")))
	assert.True(t, c.SpotPrice(250).Equal(dec("12.50")))
}

func TestQuoteBuy_TenFromZero(t *testing.T) {
	// 10/2 * (price(1) + price(10)) = 5 * (10.01 + 10.10) = 100.55
	q, err := DefaultCurve().QuoteBuy(0, 10)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("100.55")), "total=%s", q.Total)
	assert.True(t, q.AvgPrice.Equal(dec("10.055")), "avg=%s", q.AvgPrice)
	assert.True(t, q.FirstPrice.Equal(dec("10.01")))
	assert.True(t, q.LastPrice.Equal(dec("10.10")))
	assert.Equal(t, int64(10), q.EndSupply)
}

func TestQuoteBuy_InvalidQty(t *testing.T) {
	_, err := DefaultCurve().QuoteBuy(10, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = DefaultCurve().QuoteBuy(10, -3)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestQuoteSell_MoreThanSupply(t *testing.T) {
	_, err := DefaultCurve().QuoteSell(5, 6)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = DefaultCurve().QuoteSell(5, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestQuoteSell_AllSupply(t *testing.T) {
	q, err := DefaultCurve().QuoteSell(10, 10)
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(dec("100.55")))
	assert.Equal(t, int64(0), q.EndSupply)
}

func TestQuoteSide_Unknown(t *testing.T) {
	_, err := DefaultCurve().QuoteSide(SideDividend, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestSpotPrice_StrictlyIncreasing(t *testing.T) {
	c := DefaultCurve()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Int64Range(0, 10_000_000).Draw(t, "supply")
		if !c.SpotPrice(s + 1).GreaterThan(c.SpotPrice(s)) {
			t.Fatalf("price(%d) not > price(%d)", s+1, s)
		}
	})
}

func TestQuote_RoundTripSymmetry(t *testing.T) {
	c := DefaultCurve()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Int64Range(0, 1_000_000).Draw(t, "supply")
		k := rapid.Int64Range(1, 10_000).Draw(t, "qty")

		buy, err := c.QuoteBuy(s, k)
		if err != nil {
			t.Fatalf("buy: %v", err)
		}
		sell, err := c.QuoteSell(buy.EndSupply, k)
		if err != nil {
			t.Fatalf("sell: %v", err)
		}
		if !buy.Total.Equal(sell.Total) {
			t.Fatalf("buy %s != sell %s (S=%d k=%d)", buy.Total, sell.Total, s, k)
		}
		if sell.EndSupply != s {
			t.Fatalf("supply did not return: %d != %d", sell.EndSupply, s)
		}
	})
}

func TestQuote_TotalMatchesMarginalSum(t *testing.T) {
	c := DefaultCurve()
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Int64Range(0, 5_000).Draw(t, "supply")
		k := rapid.Int64Range(1, 200).Draw(t, "qty")

		sum := decimal.Zero
		for i := int64(1); i <= k; i++ {
			sum = sum.Add(c.SpotPrice(s + i))
		}
		q, err := c.QuoteBuy(s, k)
		if err != nil {
			t.Fatalf("buy: %v", err)
		}
		if !q.Total.Equal(sum) {
			t.Fatalf("closed form %s != marginal sum %s", q.Total, sum)
		}
	})
}

func TestYieldPerShare(t *testing.T) {
	assert.True(t, YieldPerShare(dec("100"), 0).IsZero())
	assert.True(t, YieldPerShare(dec("100"), 40).Equal(dec("2.5")))
}

func TestMarketCap(t *testing.T) {
	// (10 + 0.01*100) * 100 = 1100
	assert.True(t, DefaultCurve().MarketCap(100).Equal(dec("1100")))
}
