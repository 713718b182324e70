package auction

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func testIntent() MakerIntent {
	return MakerIntent{
		Maker:    common.BytesToAddress([]byte{0x0a}),
		Wager:    big.NewInt(250),
		Resolver: common.BytesToAddress([]byte{0x0b}),
		Legs: []Leg{
			{MarketID: [32]byte{0x01}, Outcome: true},
			{MarketID: [32]byte{0x02}, Outcome: false},
		},
		Nonce: 3,
		Kind:  IntentUnattested,
	}
}

func testSession(t *testing.T, ttl time.Duration) *Session {
	t.Helper()
	return NewSession("sess-1", testIntent(), "conn-1", time.Now(), ttl)
}

func TestAcceptBid(t *testing.T) {
	sess := testSession(t, time.Minute)
	now := time.Now()

	bids, err := sess.AcceptBid(makeBid(0x01, 100, now.Add(time.Minute), now))
	if err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if len(bids) != 1 {
		t.Fatalf("bid list = %d, want 1", len(bids))
	}

	bids, err = sess.AcceptBid(makeBid(0x02, 200, now.Add(time.Minute), now))
	if err != nil {
		t.Fatalf("AcceptBid() second error = %v", err)
	}
	if len(bids) != 2 {
		t.Fatalf("bid list = %d, want 2", len(bids))
	}
}

func TestAcceptBid_RejectsNonPositiveWager(t *testing.T) {
	sess := testSession(t, time.Minute)
	now := time.Now()

	bid := makeBid(0x01, 0, now.Add(time.Minute), now)
	if _, err := sess.AcceptBid(bid); !errors.Is(err, ErrInvalidWager) {
		t.Errorf("AcceptBid(zero wager) error = %v, want ErrInvalidWager", err)
	}

	bid = makeBid(0x01, -5, now.Add(time.Minute), now)
	if _, err := sess.AcceptBid(bid); !errors.Is(err, ErrInvalidWager) {
		t.Errorf("AcceptBid(negative wager) error = %v, want ErrInvalidWager", err)
	}
}

func TestAcceptBid_RejectsReusedTakerNonce(t *testing.T) {
	sess := testSession(t, time.Minute)
	now := time.Now()

	first := makeBid(0x01, 100, now.Add(time.Minute), now)
	if _, err := sess.AcceptBid(first); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	// Same taker, same nonce: replay.
	replay := makeBid(0x01, 900, now.Add(time.Minute), now)
	if _, err := sess.AcceptBid(replay); !errors.Is(err, ErrStaleNonce) {
		t.Errorf("AcceptBid(replay) error = %v, want ErrStaleNonce", err)
	}

	// Same nonce from a different taker is fine.
	other := makeBid(0x02, 100, now.Add(time.Minute), now)
	other.Nonce = first.Nonce
	if _, err := sess.AcceptBid(other); err != nil {
		t.Errorf("AcceptBid(other taker, same nonce) error = %v", err)
	}
}

func TestAcceptBid_RejectedWhenTerminal(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if _, err := sess.AcceptBid(makeBid(0x01, 100, now.Add(time.Hour), now)); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if _, err := sess.Match(now.Add(time.Minute)); err != nil {
		t.Fatalf("Match() error = %v", err)
	}

	_, err := sess.AcceptBid(makeBid(0x02, 500, now.Add(time.Hour), now))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("AcceptBid() after match: error = %v, want ErrClosed", err)
	}
}

func TestMatch_AtMostOnce(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if _, err := sess.AcceptBid(makeBid(0x01, 100, now.Add(time.Hour), now)); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}
	if _, err := sess.AcceptBid(makeBid(0x02, 300, now.Add(time.Hour), now)); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	first, err := sess.Match(now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if first.Taker != common.BytesToAddress([]byte{0x02}) {
		t.Errorf("winner = %s, want the 300 bid", first.Taker.Hex())
	}

	// Idempotent: a second Match returns the same winner.
	second, err := sess.Match(now.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("Match() second call error = %v", err)
	}
	if second.Taker != first.Taker || second.Nonce != first.Nonce {
		t.Errorf("second Match() = %+v, want %+v", second, first)
	}

	if sess.State() != StateMatched {
		t.Errorf("state = %s, want matched", sess.State())
	}
}

func TestMatch_ConcurrentCallersAgree(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	for i := byte(1); i <= 8; i++ {
		if _, err := sess.AcceptBid(makeBid(i, int64(i)*100, now.Add(time.Hour), now)); err != nil {
			t.Fatalf("AcceptBid() error = %v", err)
		}
	}

	var wg sync.WaitGroup
	winners := make([]common.Address, 16)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			winner, err := sess.Match(now.Add(time.Minute))
			if err != nil {
				t.Errorf("Match() error = %v", err)
				return
			}
			winners[slot] = winner.Taker
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(winners); i++ {
		if winners[i] != winners[0] {
			t.Fatalf("racing matchers disagree: %s vs %s", winners[i].Hex(), winners[0].Hex())
		}
	}
}

func TestMatch_NoEligibleBids(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	// One bid, already past its own deadline at match time.
	if _, err := sess.AcceptBid(makeBid(0x01, 100, now.Add(time.Second), now)); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	_, err := sess.Match(now.Add(time.Minute))
	if !errors.Is(err, ErrNoEligibleBids) {
		t.Errorf("Match() error = %v, want ErrNoEligibleBids", err)
	}

	// The failed match does not close the session by itself.
	if sess.State() != StateOpen {
		t.Errorf("state = %s, want open", sess.State())
	}
}

func TestExpireIfDue(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if sess.ExpireIfDue(now.Add(time.Second)) {
		t.Error("ExpireIfDue() before the deadline should be false")
	}

	if !sess.ExpireIfDue(now.Add(2 * time.Minute)) {
		t.Error("ExpireIfDue() past the deadline should transition")
	}
	if sess.State() != StateExpired {
		t.Errorf("state = %s, want expired", sess.State())
	}

	// Second call reports no transition.
	if sess.ExpireIfDue(now.Add(3 * time.Minute)) {
		t.Error("ExpireIfDue() on an expired session should be false")
	}
}

func TestCancel(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if err := sess.Cancel("conn-2", now); !errors.Is(err, ErrNotStarter) {
		t.Errorf("Cancel() by non-starter: error = %v, want ErrNotStarter", err)
	}

	if err := sess.Cancel("conn-1", now); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if sess.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", sess.State())
	}

	if err := sess.Cancel("conn-1", now); !errors.Is(err, ErrClosed) {
		t.Errorf("Cancel() on cancelled session: error = %v, want ErrClosed", err)
	}

	_, err := sess.Match(now.Add(2 * time.Minute))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Match() on cancelled session: error = %v, want ErrClosed", err)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if _, err := sess.AcceptBid(makeBid(0x01, 100, now.Add(time.Hour), now)); err != nil {
		t.Fatalf("AcceptBid() error = %v", err)
	}

	_, bids := sess.Snapshot()
	bids[0].Nonce = 99

	_, again := sess.Snapshot()
	if again[0].Nonce == 99 {
		t.Error("Snapshot() exposed the session's bid slice")
	}
}

func TestSubscribers(t *testing.T) {
	sess := testSession(t, time.Minute)

	sess.Subscribe("conn-a")
	sess.Subscribe("conn-b")
	sess.Subscribe("conn-a") // duplicate

	if got := len(sess.Subscribers()); got != 2 {
		t.Errorf("subscribers = %d, want 2", got)
	}

	sess.Unsubscribe("conn-a")
	if got := len(sess.Subscribers()); got != 1 {
		t.Errorf("subscribers after unsubscribe = %d, want 1", got)
	}
}

func TestTerminalSince(t *testing.T) {
	now := time.Now()
	sess := testSession(t, time.Minute)

	if _, terminal := sess.TerminalSince(); terminal {
		t.Error("open session should not report terminal")
	}

	closedAt := now.Add(2 * time.Minute)
	if !sess.ExpireIfDue(closedAt) {
		t.Fatal("ExpireIfDue() should transition")
	}

	since, terminal := sess.TerminalSince()
	if !terminal {
		t.Fatal("expired session should report terminal")
	}
	if !since.Equal(closedAt) {
		t.Errorf("terminal since = %s, want %s", since, closedAt)
	}
}
