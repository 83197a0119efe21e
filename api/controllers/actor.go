package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/api/middleware"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
)

const idempotencyHeader = "Idempotency-Key"

func actorID(r *http.Request) (uuid.UUID, error) {
	id, _, ok := middleware.Actor(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required")
	}
	return id, nil
}

// requestKey prefers the client's Idempotency-Key so a retried purchase
// reuses the same charge key.
func requestKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(idempotencyHeader)); key != "" {
		return key
	}
	return uuid.NewString()
}
