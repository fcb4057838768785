// Package audit records operator-visible actions against the collector's
// query surface, currently the point exports. Entries are append-only
// and carry a digest of the request metadata so a tampered row is
// detectable.
package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Actions recorded by this service.
const (
	ActionExportPoints = "export_points"
)

// Entry is one audited action. StationID scopes the action to a station
// when it targets one; Metadata holds action-specific detail as JSON.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	StationID     string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit entry id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "audit-" + hex.EncodeToString(buf)
}

// DigestJSON computes the SHA256 hex digest stored alongside an entry's
// metadata. Empty metadata digests to the empty string.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
