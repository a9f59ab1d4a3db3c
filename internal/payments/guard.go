package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	pkgredis "github.com/lacucina/restaurant-backend/pkg/redis"
)

const (
	sessionTTL  = 24 * time.Hour
	inflightTTL = 2 * time.Minute
)

// RedirectSession is a registered redirect payment, as returned to the browser.
type RedirectSession struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	FormURL        string `json:"formUrl"`
	OrderNumber    string `json:"orderNumber"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// registrationGuard keeps a double submitted checkout from registering the
// same order twice at the gateway.
type registrationGuard struct {
	store guardStore
}

func (g *registrationGuard) sessionKey(orderID uuid.UUID, token string) string {
	return g.store.RegistrationKey(orderID.String(), token)
}

func (g *registrationGuard) inflightKey(orderID uuid.UUID) string {
	return g.store.RegistrationKey("inflight", orderID.String())
}

// Lookup returns the session previously stored for (order, token), if any.
func (g *registrationGuard) Lookup(ctx context.Context, orderID uuid.UUID, token string) (*RedirectSession, error) {
	raw, err := g.store.Get(ctx, g.sessionKey(orderID, token))
	if err != nil {
		if errors.Is(err, pkgredis.Nil) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read registration guard")
	}
	var session RedirectSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode registration guard")
	}
	return &session, nil
}

// Acquire marks a registration for the order as in flight. It reports false
// while another registration for the same order is running.
func (g *registrationGuard) Acquire(ctx context.Context, orderID uuid.UUID, token string) (bool, error) {
	ok, err := g.store.SetNX(ctx, g.inflightKey(orderID), token, inflightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire registration guard")
	}
	return ok, nil
}

// Release clears the in-flight marker if token still owns it. A marker that
// already expired and was taken by a later request is left alone.
func (g *registrationGuard) Release(ctx context.Context, orderID uuid.UUID, token string) error {
	if _, err := g.store.DelIfValue(ctx, g.inflightKey(orderID), token); err != nil {
		return fmt.Errorf("release registration guard: %w", err)
	}
	return nil
}

// Remember stores the registered session so replays of the same request get it back.
func (g *registrationGuard) Remember(ctx context.Context, orderID uuid.UUID, session RedirectSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return g.store.Set(ctx, g.sessionKey(orderID, session.IdempotencyKey), string(payload), sessionTTL)
}
