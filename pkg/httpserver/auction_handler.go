package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/parlaymkt/auction-relayer/internal/auction"
)

// AuctionHandler serves the read-only inspection API over the live session
// store. Nothing here mutates auction state.
type AuctionHandler struct {
	store  *auction.Store
	logger *zap.Logger
}

// NewAuctionHandler creates a new auction handler.
func NewAuctionHandler(store *auction.Store, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		store:  store,
		logger: logger,
	}
}

// AuctionView represents one auction session in the HTTP response.
type AuctionView struct {
	AuctionID string `json:"auction_id"`
	Maker     string `json:"maker"`
	Wager     string `json:"wager"`
	Resolver  string `json:"resolver"`
	Legs      int    `json:"legs"`
	Attested  bool   `json:"attested"`
	State     string `json:"state"`
	Deadline  int64  `json:"deadline"`
	BidCount  int    `json:"bid_count"`
	Winner    string `json:"winner,omitempty"`
}

// AuctionsResponse represents the HTTP response for the auction list.
type AuctionsResponse struct {
	Auctions []AuctionView `json:"auctions"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleAuctions handles GET /api/auctions[?id=<auction-id>][&state=<state>].
func (h *AuctionHandler) HandleAuctions(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		sess, ok := h.store.Get(id)
		if !ok {
			h.writeError(w, "auction not found", http.StatusNotFound)
			return
		}

		h.writeJSON(w, viewOf(sess))
		return
	}

	stateFilter := r.URL.Query().Get("state")

	views := make([]AuctionView, 0)
	h.store.Range(func(sess *auction.Session) bool {
		view := viewOf(sess)
		if stateFilter == "" || view.State == stateFilter {
			views = append(views, view)
		}
		return true
	})

	h.logger.Debug("auctions-request-served",
		zap.String("state-filter", stateFilter),
		zap.Int("count", len(views)))

	h.writeJSON(w, AuctionsResponse{Auctions: views})
}

func viewOf(sess *auction.Session) AuctionView {
	state, bids := sess.Snapshot()

	view := AuctionView{
		AuctionID: sess.ID,
		Maker:     sess.Intent.Maker.Hex(),
		Wager:     sess.Intent.Wager.String(),
		Resolver:  sess.Intent.Resolver.Hex(),
		Legs:      len(sess.Intent.Legs),
		Attested:  sess.Intent.Attested(),
		State:     state.String(),
		Deadline:  sess.Deadline.Unix(),
		BidCount:  len(bids),
	}

	if winner, ok := sess.Winner(); ok {
		view.Winner = winner.Taker.Hex()
	}

	return view
}

func (h *AuctionHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *AuctionHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
