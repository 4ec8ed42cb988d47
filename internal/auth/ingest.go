package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderIngestGateway   = "X-Ingest-Gateway"
	HeaderIngestTimestamp = "X-Ingest-Timestamp"
	HeaderIngestSignature = "X-Ingest-Signature"

	maxSignedBody = 4 << 20
)

// IngestAuthMiddleware verifies signed state event uploads from shop-floor
// gateways. Each gateway has its own key; the signature is
// hex(HMAC-SHA256(key, method "\n" path "\n" timestamp "\n" body)).
type IngestAuthMiddleware struct {
	keys    map[string][]byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewIngestAuthMiddleware constructs the middleware from gateway keys.
func NewIngestAuthMiddleware(keys map[string][]byte, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{keys: keys, maxSkew: maxSkew, now: time.Now}
}

// ParseGatewayKeys reads "gateway:secret" pairs separated by commas.
func ParseGatewayKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		gateway, secret, ok := strings.Cut(pair, ":")
		gateway, secret = strings.TrimSpace(gateway), strings.TrimSpace(secret)
		if !ok || gateway == "" || secret == "" {
			return nil, errors.New("auth: gateway keys must be gateway:secret pairs")
		}
		keys[gateway] = []byte(secret)
	}
	return keys, nil
}

// Wrap verifies the signature and stores the gateway identity in the context.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gateway := strings.TrimSpace(r.Header.Get(HeaderIngestGateway))
		key, ok := m.keys[gateway]
		if !ok || len(key) == 0 {
			http.Error(w, ErrUnknownGateway.Error(), http.StatusUnauthorized)
			return
		}
		timestamp := strings.TrimSpace(r.Header.Get(HeaderIngestTimestamp))
		signature := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderIngestSignature)))
		if timestamp == "" || signature == "" {
			http.Error(w, "missing ingest signature", http.StatusUnauthorized)
			return
		}
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			http.Error(w, "invalid ingest timestamp", http.StatusUnauthorized)
			return
		}
		if skew := m.now().Sub(time.Unix(unix, 0)).Abs(); m.maxSkew > 0 && skew > m.maxSkew {
			http.Error(w, "ingest signature expired", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		_ = r.Body.Close()
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		expected := SignIngest(key, r.Method, r.URL.Path, timestamp, body)
		if !hmac.Equal([]byte(signature), []byte(expected)) {
			http.Error(w, "invalid ingest signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), Identity{Gateway: gateway})))
	})
}

// SignIngest computes the signature a gateway sends with an upload.
func SignIngest(key []byte, method, path, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	for _, part := range []string{method, path, timestamp} {
		_, _ = mac.Write([]byte(part))
		_, _ = mac.Write([]byte("\n"))
	}
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
