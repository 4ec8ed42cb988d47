package audit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"oee-cloud/internal/auth"
)

// NewEntry starts an entry for r with the caller and client details filled in.
func NewEntry(r *http.Request, action Action, resourceType string, metadata map[string]any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		IP:           clientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		entry.PlantID = id.PlantID
		entry.Actor = id.Actor()
		entry.Role = string(id.Role)
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	return entry
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
