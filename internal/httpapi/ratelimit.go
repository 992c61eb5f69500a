package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// limiterKind distinguishes the two rate-limited surfaces (§6: "/api/chat
// and /execute"), each with its own buckets: chat is tracked per session
// so one noisy session cannot starve another's budget, execute per remote
// address.
type limiterKind int

const (
	chatLimiterKind limiterKind = iota
	execLimiterKind
)

// rateLimiters holds one golang.org/x/time/rate token bucket per
// (kind, key) pair, grounded on the teacher's AdaptiveRateLimiter use of
// rate.NewLimiter(rate.Limit(tpm/60.0), int(tpm)) — simplified to a flat
// requests-per-minute budget since no provider backoff signal exists here.
type rateLimiters struct {
	perMin int

	mu       sync.Mutex
	chat     map[string]*rate.Limiter
	execute  map[string]*rate.Limiter
}

func newRateLimiters(perMin int) *rateLimiters {
	return &rateLimiters{perMin: perMin, chat: map[string]*rate.Limiter{}, execute: map[string]*rate.Limiter{}}
}

// enabled reports whether limiting is on; a nonpositive configured rate
// disables it entirely (§9 ambient stack note: rate_limit_per_min <= 0
// means disabled).
func (r *rateLimiters) enabled() bool { return r.perMin > 0 }

func (r *rateLimiters) allow(kind limiterKind, sessionID string) bool {
	if !r.enabled() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.chat
	if kind == execLimiterKind {
		bucket = r.execute
	}
	lim, ok := bucket[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(r.perMin)/60.0), r.perMin)
		bucket[sessionID] = lim
	}
	return lim.Allow()
}

// rateLimited wraps next with token-bucket enforcement. Chat requests are
// keyed by the session_id in the request body (see chatRateLimitKey);
// execute requests are keyed by the remote address, since the executor
// request body names no session.
func (s *Server) rateLimited(kind limiterKind, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if kind == chatLimiterKind {
			key = chatRateLimitKey(r)
		}
		if !s.limiters.allow(kind, key) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// chatRateLimitKey peeks the session_id out of a /api/chat request body
// without consuming it, so chat-mode bursts are budgeted per engagement
// rather than per client IP. Falls back to the remote address if the body
// can't be parsed; the chat handler itself still rejects a missing/unknown
// session_id.
func chatRateLimitKey(r *http.Request) string {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return r.RemoteAddr
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	var peek struct {
		SessionID string `json:"session_id"`
	}
	if json.Unmarshal(body, &peek) == nil && peek.SessionID != "" {
		return peek.SessionID
	}
	return r.RemoteAddr
}
