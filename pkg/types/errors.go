package types

// Protocol rejection codes carried in auction.error payloads. The code tells
// a client whether a resubmit can succeed: STALE_NONCE after refreshing the
// nonce, NONCE_LOOKUP_FAILED after a backoff, the rest not at all.
const (
	CodeEncodingError     = "ENCODING_ERROR"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeStaleNonce        = "STALE_NONCE"
	CodeNonceLookupFailed = "NONCE_LOOKUP_FAILED"
	CodeAuctionClosed     = "AUCTION_CLOSED"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeUnauthorized      = "UNAUTHORIZED"
)
