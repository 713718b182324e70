package auction

import "time"

// SelectBest returns the best eligible bid at the given instant, or nil when
// no bid is eligible. A bid is eligible while its deadline is strictly in the
// future. Among eligible bids the numerically largest wager wins; ties break
// to the earliest received bid, so first-to-bid wins wire races.
//
// SelectBest is pure: it never mutates the input and repeated calls with the
// same arguments return the same bid.
func SelectBest(bids []TakerBid, now time.Time) *TakerBid {
	var best *TakerBid

	for i := range bids {
		bid := &bids[i]
		if bid.Expired(now) {
			continue
		}

		if best == nil {
			best = bid
			continue
		}

		switch bid.Wager.Cmp(best.Wager) {
		case 1:
			best = bid
		case 0:
			if bid.ReceivedAt.Before(best.ReceivedAt) {
				best = bid
			}
		}
	}

	if best == nil {
		return nil
	}

	// Return a copy so callers cannot reach back into the session's list.
	out := *best
	return &out
}
