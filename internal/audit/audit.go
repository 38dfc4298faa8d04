// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/id"
	"github.com/timothyfroehlich/PinPoint-sub001/internal/observability/logger"
)

const (
	TypeLoginSuccess        = "login_success"
	TypeLoginFailed         = "login_failed"
	TypeAccessDenied        = "access_denied"
	TypeOrganizationCreated = "organization_created"
	TypeRoleCreated         = "role_created"
	TypeRoleUpdated         = "role_updated"
	TypeRoleRenamed         = "role_renamed"
	TypeRoleDeleted         = "role_deleted"
	TypeMemberAdded         = "member_added"
	TypeMemberRoleChanged   = "member_role_changed"
	TypeMemberRemoved       = "member_removed"
	TypeAnonymousReport     = "anonymous_report"
	TypeUserCreated         = "user_created"
)

// Event is one security relevant action. ActorID is empty for anonymous
// visitors and for system actions.
type Event struct {
	ID             string
	Type           string
	OrganizationID string
	ActorID        string
	Resource       string
	Metadata       map[string]any
	Timestamp      time.Time
	IPAddress      string
	UserAgent      string
}

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// warnTypes are logged at warning level so denials and failed sign-ins
// stand out from routine changes.
var warnTypes = map[string]bool{
	TypeAccessDenied: true,
	TypeLoginFailed:  true,
}

// SlogLogger writes events as structured log records.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a logger writing through l, or slog.Default when nil.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l.With(logger.Component("audit"))}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = id.NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []slog.Attr{
		slog.String("audit_id", event.ID),
		slog.String("audit_type", event.Type),
		logger.OrganizationID(event.OrganizationID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, logger.UserAgent(event.UserAgent))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Group("metadata", metadataAttrs(event.Metadata)...))
	}

	level := slog.LevelInfo
	if warnTypes[event.Type] {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "AUDIT_EVENT", attrs...)
}

// metadataAttrs returns the metadata in key order with secrets masked.
func metadataAttrs(md map[string]any) []any {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		v := md[k]
		if isSecret(k) {
			v = "[REDACTED]"
		}
		out = append(out, slog.Any(k, v))
	}
	return out
}

var secretMarkers = []string{"password", "secret", "token", "key", "authorization", "hash", "credential", "cookie"}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretMarkers {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Nop discards events.
type Nop struct{}

func (Nop) Log(context.Context, Event) {}
