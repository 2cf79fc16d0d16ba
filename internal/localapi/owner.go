package localapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

const ownerHeader = "X-User-ID"

type ownerKey struct{}

// requireOwner reads the authenticated user id set by the upstream session layer.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := parseOwner(r.Header.Get(ownerHeader))
		if !ok && s.deps.DevUserID > 0 && strings.TrimSpace(r.Header.Get(ownerHeader)) == "" {
			ownerID, ok = s.deps.DevUserID, true
		}
		if !ok {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, ownerID)))
	})
}

func parseOwner(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func ownerFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ownerKey{}).(int64)
	return id
}
