package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/api/responses"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
)

// PolicyChecker is satisfied by authz.Enforcer.
type PolicyChecker interface {
	Allowed(userID uuid.UUID, role enums.UserRole, object, action string) (bool, error)
}

// RequirePolicy rejects requests the policy store does not allow for the
// authenticated actor. Must run after Auth.
func RequirePolicy(checker PolicyChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, role, ok := Actor(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required"))
				return
			}
			allowed, err := checker.Allowed(userID, role, r.URL.Path, r.Method)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "authorize request"))
				return
			}
			if !allowed {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
