package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"tablebook/internal/config"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"

	permReadTables        = "read:tables"
	permReadAvailability  = "read:availability"
	permWriteReservations = "write:reservations"
	permReadExport        = "read:export"

	clientKeyUnknown = "unknown"
)

var errPermissionDenied = errors.New("permission denied")

// HTTPAuth provides API-key auth and per-key rate limiting.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader()))
	if apiKey == "" || extra == "" {
		return errors.New("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errors.New("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errors.New("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermission(r)
	if required == "" {
		return nil
	}

	// Пустой список разрешений трактуем как allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}

	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/tables":
		return permReadTables
	case strings.HasPrefix(path, "/api/v1/tables/"):
		return permReadAvailability
	case path == "/api/v1/reservations":
		return permWriteReservations
	case strings.HasPrefix(path, "/api/v1/wizard"):
		return permWriteReservations
	case path == "/api/v1/export":
		return permReadExport
	default:
		return ""
	}
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	lim := a.limiter.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return errors.New("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (a *HTTPAuth) apiKeyHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.Auth.HeaderAPIKey)); h != "" {
		return h
	}
	return apiKeyHeaderDefault
}

func (a *HTTPAuth) extraHeader() string {
	if h := strings.ToLower(strings.TrimSpace(a.cfg.Auth.HeaderExtra)); h != "" {
		return h
	}
	return apiExtraHeaderDefault
}
