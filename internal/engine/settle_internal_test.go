package engine

import (
	"testing"

	"github.com/alejandrodnm/resolvebot/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateStopLoss(t *testing.T) {
	p := domain.Position{EntryProb: 0.90, Size: decimal.NewFromInt(100), Cost: decimal.NewFromInt(90)}

	tests := []struct {
		name      string
		current   float64
		bid       float64
		threshold float64
		payout    string
		ok        bool
	}{
		{"triggers at bid", 0.60, 0.55, 0.15, "55", true},
		{"exact threshold", 0.75, 0.74, 0.15, "74", true},
		{"below threshold", 0.80, 0.79, 0.15, "0", false},
		{"no bids", 0.50, 0, 0.15, "0", false},
		{"disabled", 0.10, 0.10, 0, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payout, ok := evaluateStopLoss(p, tt.current, tt.bid, tt.threshold)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, payout.Equal(decimal.RequireFromString(tt.payout)), "payout=%s", payout)
		})
	}
}

func TestSizePosition(t *testing.T) {
	tests := []struct {
		name    string
		ask     float64
		size    float64
		stake   string
		wantSz  string
		wantCst string
	}{
		{"stake bound", 0.90, 50, "10", "11.1111", "9.99999"},
		{"ask size bound", 0.80, 5, "10", "5", "4"},
		{"zero ask", 0, 100, "10", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := domain.Candidate{BestAsk: tt.ask, AskSize: tt.size}
			_, size, cost := sizePosition(c, decimal.RequireFromString(tt.stake))
			assert.True(t, size.Equal(decimal.RequireFromString(tt.wantSz)), "size=%s", size)
			assert.True(t, cost.Equal(decimal.RequireFromString(tt.wantCst)), "cost=%s", cost)
		})
	}
}

func TestResolutionPayout(t *testing.T) {
	p := domain.Position{Side: domain.SideNo, Size: decimal.NewFromInt(100)}
	assert.True(t, resolutionPayout(p, domain.SideNo).Equal(decimal.NewFromInt(100)))
	assert.True(t, resolutionPayout(p, domain.SideYes).IsZero())
}
