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

package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName scopes the OpenTelemetry instruments of the gates.
const meterName = "pinpoint/authz"

// Config selects the OpenTelemetry meter.
type Config struct {
	Enabled bool
}

// NewMeter returns the meter handed to the authorization engine. It comes
// from the global provider when enabled and is a no-op otherwise, so
// instruments can always be created.
func NewMeter(cfg Config) metric.Meter {
	if !cfg.Enabled {
		return noop.NewMeterProvider().Meter(meterName)
	}
	return otel.Meter(meterName)
}
