package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fieldops-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fieldops-backend/pkg/errors"
	"github.com/angelmondragon/fieldops-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/fieldops-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxKeyLength      = 255
)

type replayRule struct {
	ttl      time.Duration
	required bool
}

// Keyed by method and full chi route pattern. Finalize is already safe to
// repeat, so its key is optional and only buys a byte-identical response.
var replayRules = map[string]replayRule{
	http.MethodPost + " /api/v1/assignments/{assignmentId}/finalize": {ttl: 24 * time.Hour},
	http.MethodPost + " /api/v1/admin/totals/reset":                  {ttl: time.Hour, required: true},
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first non-5xx response stored under the client's
// Idempotency-Key. It must be mounted with chi's With so the full route
// pattern is resolved.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := routeRule(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "" && !rule.required:
				next.ServeHTTP(w, r)
				return
			case clientKey == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxKeyLength:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long"))
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))

			fingerprint := requestHash(payload)
			key := store.IdempotencyKey(r.Method+"|"+r.URL.Path, clientKey)

			raw, err := store.Get(r.Context(), key)
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "idempotency lookup failed"))
				return
			default:
				var prior storedResponse
				if err := json.Unmarshal([]byte(raw), &prior); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "idempotency record unreadable"))
					return
				}
				if prior.RequestHash != fingerprint {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				replay(w, prior)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, keepBody: true}
			next.ServeHTTP(rec, r)

			// 5xx results stay retryable
			if rec.Status() >= http.StatusInternalServerError {
				return
			}
			encoded, err := json.Marshal(storedResponse{
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
				RequestHash: fingerprint,
			})
			if err == nil {
				_, err = store.SetNX(r.Context(), key, string(encoded), rule.ttl)
			}
			if err != nil && logg != nil {
				logg.Error(r.Context(), "idempotency.store_failed", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, prior storedResponse) {
	if prior.ContentType != "" {
		w.Header().Set("Content-Type", prior.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(prior.Status)
	_, _ = w.Write(prior.Body)
}

func requestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func routeRule(method, pattern string) (replayRule, bool) {
	if pattern == "" {
		return replayRule{}, false
	}
	rule, ok := replayRules[method+" "+pattern]
	return rule, ok
}
