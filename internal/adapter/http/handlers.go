package http

import (
	"net/http"
	"strings"

	"github.com/Strob0t/CodeMentor/internal/service"
)

const maxRequestBodySize = 4 << 20 // room for base64 image payloads

// Handlers bundles the HTTP handler dependencies.
type Handlers struct {
	Chats *service.ChatService
}

// callerID resolves the identity used for chat ownership and admission
// keying: the X-User-ID header when present, else the client address.
func callerID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop only.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
