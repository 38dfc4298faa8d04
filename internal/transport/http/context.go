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

package http

import (
	"context"

	"github.com/timothyfroehlich/PinPoint-sub001/internal/organization"
)

type contextKey string

const signalsKey contextKey = "organization_signals"

func withSignals(ctx context.Context, sig organization.Signals) context.Context {
	return context.WithValue(ctx, signalsKey, sig)
}

// signalsFrom retrieves the organization signals captured for the request.
func signalsFrom(ctx context.Context) organization.Signals {
	if sig, ok := ctx.Value(signalsKey).(organization.Signals); ok {
		return sig
	}
	return organization.Signals{}
}
