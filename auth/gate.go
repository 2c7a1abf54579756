package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ahmedmirza994/whatsapp-sub001/contract"
	"github.com/ahmedmirza994/whatsapp-sub001/domain"
	"github.com/ahmedmirza994/whatsapp-sub001/errors"
	"github.com/ahmedmirza994/whatsapp-sub001/observability"
)

// Gate validates the bearer credential of every inbound interaction and
// resolves it to a stable identity. It is stateless: each request is
// validated independently, with exactly one directory lookup and no
// caching of negative results, so the service can be replicated without
// shared session storage.
type Gate struct {
	tokens  *TokenManager
	users   contract.IUserDirectory
	monitor *observability.Monitor
	log     *slog.Logger
}

func NewGate(tokens *TokenManager, users contract.IUserDirectory,
	monitor *observability.Monitor, log *slog.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, monitor: monitor, log: log}
}

// Authenticate extracts the credential from the Authorization header, or
// from the "token" query parameter for the WebSocket handshake where
// browsers cannot set headers. It returns the resolved identity or one
// of the gate's three failure sentinels.
func (g *Gate) Authenticate(r *http.Request) (domain.Identity, error) {
	token := bearerToken(r)
	if token == "" {
		return domain.Identity{}, errors.ErrMissingCredential
	}

	email, err := g.tokens.Validate(token)
	if err != nil {
		return domain.Identity{}, err
	}

	user, err := g.users.FindByEmail(email)
	if err != nil {
		g.log.Warn("Token subject resolves to no known user", "subject", email)
		return domain.Identity{}, errors.ErrUnknownSubject
	}

	return user.Identity(), nil
}

// Middleware rejects unauthenticated requests and binds the identity to
// the request context for the handler chain. The identity is only set
// once the full resolution succeeded.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r)
		if err != nil {
			g.monitor.IncrAuthFailure()
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.MapToHTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
