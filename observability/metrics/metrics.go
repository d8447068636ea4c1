package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"yieldgate/core/events"
	"yieldgate/core/types"
	"yieldgate/native/auction"
	"yieldgate/native/loan"
)

// Collector turns engine events into prometheus counters. It implements
// events.Emitter so it can sit in the engines' emitter fanout.
type Collector struct {
	bidsAccepted       prometheus.Counter
	auctionsCreated    prometheus.Counter
	auctionsExtended   prometheus.Counter
	auctionsFinalized  *prometheus.CounterVec
	refundsClaimed     prometheus.Counter
	loansCreated       prometheus.Counter
	repayments         *prometheus.CounterVec
	withdrawals        prometheus.Counter
	collateralReclaims prometheus.Counter
}

// NewCollector builds the counters and registers them with the registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "auction", Name: "bids_accepted_total",
			Help: "Accepted rate bids.",
		}),
		auctionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "auction", Name: "created_total",
			Help: "Auctions opened by the factory.",
		}),
		auctionsExtended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "auction", Name: "extensions_total",
			Help: "Anti-sniping deadline extensions.",
		}),
		auctionsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "auction", Name: "finalized_total",
			Help: "Finalized auctions by outcome.",
		}, []string{"outcome"}),
		refundsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "auction", Name: "refunds_claimed_total",
			Help: "Refund ledger payouts.",
		}),
		loansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "loan", Name: "created_total",
			Help: "Loans created from settled auctions.",
		}),
		repayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "loan", Name: "repayments_total",
			Help: "Repayments by channel.",
		}, []string{"channel"}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "loan", Name: "withdrawals_total",
			Help: "Lender withdrawals.",
		}),
		collateralReclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldgate", Subsystem: "loan", Name: "collateral_reclaims_total",
			Help: "Collateral releases after full repayment.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			c.bidsAccepted, c.auctionsCreated, c.auctionsExtended, c.auctionsFinalized,
			c.refundsClaimed, c.loansCreated, c.repayments, c.withdrawals, c.collateralReclaims,
		)
	}
	return c
}

// Emit implements events.Emitter.
func (c *Collector) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case auction.EventTypeAuctionCreated:
		c.auctionsCreated.Inc()
	case auction.EventTypeBidAccepted:
		c.bidsAccepted.Inc()
	case auction.EventTypeAuctionExtended:
		c.auctionsExtended.Inc()
	case auction.EventTypeAuctionFinalized:
		c.auctionsFinalized.WithLabelValues(finalizeOutcome(evt)).Inc()
	case auction.EventTypeRefundClaimed:
		c.refundsClaimed.Inc()
	case loan.EventTypeLoanCreated:
		c.loansCreated.Inc()
	case loan.EventTypeLoanRepaid:
		c.repayments.WithLabelValues(repayChannel(evt)).Inc()
	case loan.EventTypeLoanWithdrawn:
		c.withdrawals.Inc()
	case loan.EventTypeLoanReclaimed:
		c.collateralReclaims.Inc()
	}
}

type payloadCarrier interface {
	Event() *types.Event
}

func attrOf(evt events.Event, key, fallback string) string {
	carrier, ok := evt.(payloadCarrier)
	if !ok || carrier.Event() == nil {
		return fallback
	}
	if value, ok := carrier.Event().Attributes[key]; ok && value != "" {
		return value
	}
	return fallback
}

func finalizeOutcome(evt events.Event) string {
	return attrOf(evt, "outcome", "unknown")
}

func repayChannel(evt events.Event) string {
	return attrOf(evt, "channel", "unknown")
}
