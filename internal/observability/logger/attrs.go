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

package logger

import "log/slog"

// Attribute helpers keep log keys identical across packages so that
// request, tenant and denial fields can be queried uniformly.

func RequestID(id string) slog.Attr { return slog.String("request_id", id) }
func Method(method string) slog.Attr { return slog.String("method", method) }
func Path(path string) slog.Attr { return slog.String("path", path) }
func RemoteAddr(addr string) slog.Attr { return slog.String("remote_addr", addr) }
func UserAgent(ua string) slog.Attr { return slog.String("user_agent", ua) }
func StatusCode(code int) slog.Attr { return slog.Int("status_code", code) }

// Duration is recorded in milliseconds.
func Duration(ms int64) slog.Attr { return slog.Int64("duration_ms", ms) }

func UserID(id string) slog.Attr { return slog.String("user_id", id) }
func OrganizationID(id string) slog.Attr { return slog.String("organization_id", id) }
func Permission(name string) slog.Attr { return slog.String("permission", name) }

// Stage is the last authorization stage a decision reached.
func Stage(stage string) slog.Attr { return slog.String("authz_stage", stage) }

// DenialKind is the error kind returned to the caller.
func DenialKind(kind string) slog.Attr { return slog.String("denial_kind", kind) }

func Component(name string) slog.Attr { return slog.String("component", name) }
func Operation(op string) slog.Attr { return slog.String("operation", op) }

// Error logs err's message, or an empty string for nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func String(key, value string) slog.Attr { return slog.String(key, value) }
