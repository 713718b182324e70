package relay

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
	"github.com/parlaymkt/auction-relayer/internal/storage"
)

const prepareTimeout = 10 * time.Second

// sweepLoop drives every deadline-based transition: sessions past their
// cutoff are matched if any eligible bid exists, expired otherwise, and
// terminal sessions past retention are evicted.
func (h *Hub) sweepLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

// sweep runs one pass over due sessions. Exported through the loop only; the
// pass is idempotent, so an overlapping manual run is harmless.
func (h *Hub) sweep(now time.Time) {
	for _, sess := range h.store.Due(now) {
		winner, err := sess.Match(now)
		switch {
		case err == nil:
			h.finalizeMatch(sess, winner)

		case errors.Is(err, auction.ErrNoEligibleBids):
			if sess.ExpireIfDue(now) {
				h.logger.Info("auction-expired",
					zap.String("auction-id", sess.ID),
					zap.Time("deadline", sess.Deadline))
				h.broadcastBids(sess)
			}

		default:
			// Already terminal: cancelled between Due and Match.
		}
	}

	if evicted := h.store.EvictTerminal(now, h.cfg.Retention); evicted > 0 {
		h.logger.Debug("terminal-sessions-evicted", zap.Int("count", evicted))
	}
}

// finalizeMatch broadcasts the terminal bid list and, for fully attested
// pairs, prepares and records the settlement call. A preparation failure
// leaves the session Matched but unsettled; the audit trail carries enough
// to replay it.
func (h *Hub) finalizeMatch(sess *auction.Session, winner *auction.TakerBid) {
	h.logger.Info("auction-matched",
		zap.String("auction-id", sess.ID),
		zap.String("taker", winner.Taker.Hex()),
		zap.String("taker-wager", winner.Wager.String()))

	MatchBroadcasts.Inc()
	h.broadcastBids(sess)

	if h.preparer == nil || !sess.Intent.Attested() || len(winner.Signature) == 0 {
		h.logger.Info("settlement-skipped-unsigned",
			zap.String("auction-id", sess.ID))
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, prepareTimeout)
	defer cancel()

	prepared, err := h.preparer.Prepare(ctx, sess.ID, &sess.Intent, winner)
	if err != nil {
		h.logger.Warn("settlement-prepare-failed",
			zap.String("auction-id", sess.ID),
			zap.Error(err))
		return
	}

	rec := &storage.MatchRecord{
		AuctionID:     sess.ID,
		Maker:         prepared.Request.Maker.Hex(),
		Taker:         prepared.Request.Taker.Hex(),
		MakerWager:    prepared.Request.MakerWager.String(),
		TakerWager:    prepared.Request.TakerWager.String(),
		ReferenceCode: prepared.Request.ReferenceCode.Hex(),
		Calldata:      prepared.Calldata,
		MatchedAt:     time.Now(),
	}
	if err := h.audit.StoreMatch(ctx, rec); err != nil {
		h.logger.Warn("audit-match-failed",
			zap.String("auction-id", sess.ID),
			zap.Error(err))
	}
}
