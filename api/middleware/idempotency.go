package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lacucina/restaurant-backend/api/responses"
	"github.com/lacucina/restaurant-backend/api/validators"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	pkgredis "github.com/lacucina/restaurant-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	checkoutIdempotencyTTL = 7 * 24 * time.Hour
	paymentIdempotencyTTL  = 24 * time.Hour
	// inFlightTTL bounds how long a crashed request can block its key.
	inFlightTTL = time.Minute

	maxIdempotencyKeyLen = 128
)

// idempotentRoutes maps "METHOD path" to how long a finished response is
// replayed. Requests without the header pass through; the redirect
// registration also has its own guard keyed on the order.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /orders":                    checkoutIdempotencyTTL,
	http.MethodPost + " /payment/intent":            paymentIdempotencyTTL,
	http.MethodPost + " /payment/redirect/initiate": paymentIdempotencyTTL,
}

// storedResponse is what Redis holds under an idempotency key. A record with
// InFlight set marks a request that is still being processed.
type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first completed response for a repeated
// Idempotency-Key so a retried checkout never creates a second order.
// Concurrent duplicates are rejected while the first one runs, server errors
// are forgotten so the client may retry, and any store failure fails closed.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := requestPath(r)
			ttl, ok := idempotencyTTL(r.Method, path)
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key is too long"))
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body").
					WithDetails(map[string]string{"body": fmt.Sprintf("must not exceed %d bytes", validators.MaxBodyBytes)}))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := store.IdempotencyKey(r.Method+"|"+path, clientKey)

			existing, err := loadResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if existing == nil {
				existing, err = reserve(ctx, store, key, hash)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
					return
				}
			}
			if existing != nil {
				replay(ctx, logg, w, existing, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			completed := false
			defer func() {
				if completed {
					return
				}
				// Handler panicked; free the key before the recoverer answers.
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
			}()
			next.ServeHTTP(capture, r)
			completed = true

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if delErr := store.Del(context.WithoutCancel(ctx), key); delErr != nil {
					logError(ctx, logg, "release idempotency key", delErr)
				}
				return
			}
			record := storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			payload, err := json.Marshal(record)
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(payload), ttl)
			}
			if err != nil {
				logError(ctx, logg, "persist idempotent response", err)
			}
		})
	}
}

func loadResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// reserve claims key for this request. When another request won the race it
// returns that request's record instead.
func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (*storedResponse, error) {
	marker, err := json.Marshal(storedResponse{InFlight: true, RequestHash: hash})
	if err != nil {
		return nil, err
	}
	won, err := store.SetNX(ctx, key, string(marker), inFlightTTL)
	if err != nil {
		return nil, err
	}
	if won {
		return nil, nil
	}
	stored, err := loadResponse(ctx, store, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// Winner finished with a server error and released the key.
		return &storedResponse{InFlight: true, RequestHash: hash}, nil
	}
	return stored, nil
}

func replay(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, stored *storedResponse, hash string) {
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case stored.InFlight:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// requestPath is used instead of the chi route pattern because this
// middleware runs before routing completes.
func requestPath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	if p := strings.TrimSuffix(r.URL.Path, "/"); p != "" {
		return p
	}
	return r.URL.Path
}

func idempotencyTTL(method, path string) (time.Duration, bool) {
	ttl, ok := idempotentRoutes[method+" "+path]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
