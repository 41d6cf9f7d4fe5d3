package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TokenLength is the fixed length of every identity token.
const TokenLength = 16

// Deriver maps a connecting client's network address to a stable
// pseudonymous token via a keyed one-way hash. The secret key is held only
// by the server and must never appear in logs or token output.
type Deriver struct {
	secret []byte
}

// NewDeriver creates a deriver with the given server secret.
func NewDeriver(secret []byte) *Deriver {
	return &Deriver{secret: secret}
}

// DeriveFromRequest resolves the client address of an HTTP request and
// returns its identity token. Candidate sources are tried in order: the
// first hop of X-Forwarded-For, X-Real-IP, then the transport remote
// address. If no candidate validates as an IPv4 address, a per-connection
// unique identifier is used instead, so the caller still gets a well-formed
// token.
func (d *Deriver) DeriveFromRequest(r *http.Request) string {
	addr := clientAddress(r)
	if addr == "" {
		log.Warn().Msg("no valid client address found, falling back to connection-unique identity")
		addr = uuid.NewString()
	}
	return d.Derive(addr)
}

// Derive returns the token for an address. The same address always yields
// the same token.
func (d *Deriver) Derive(addr string) string {
	h := hmac.New(sha256.New, d.secret)
	h.Write([]byte(addr))
	return hex.EncodeToString(h.Sum(nil))[:TokenLength]
}

// ValidToken reports whether s looks like a token this deriver issued. Used
// to vet tokens echoed back by clients during the handshake.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// clientAddress returns the first candidate that parses as IPv4, or "".
func clientAddress(r *http.Request) string {
	var candidates []string

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		candidates = append(candidates, strings.TrimSpace(first))
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		candidates = append(candidates, strings.TrimSpace(real))
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		candidates = append(candidates, host)
	} else if r.RemoteAddr != "" {
		candidates = append(candidates, r.RemoteAddr)
	}

	for _, c := range candidates {
		ip := net.ParseIP(c)
		if ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}
	return ""
}
