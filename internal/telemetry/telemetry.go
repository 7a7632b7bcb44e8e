// Copyright (C) 2025 wisp-mesh
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package telemetry forwards uievent.Error occurrences to Sentry, when
// configured. It is the one UI-edge surface spec.md's ambient stack
// calls for beyond structured logging: operational errors a node's
// own logs already capture, additionally reported for a running fleet
// to aggregate. Nothing in message, store, netp2p, or relay imports
// this package — it only observes the uievent stream a caller wires up.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/wisp-mesh/wisp/internal/logger"
	"github.com/wisp-mesh/wisp/uievent"
)

// Reporter forwards error events to Sentry. A zero-value Reporter with
// no DSN configured is inert: Report becomes a no-op.
type Reporter struct {
	enabled bool
	log     *logger.StructuredLogger
}

// Init configures the global Sentry client. dsn empty disables
// reporting entirely. environment and release are attached to every
// captured event.
func Init(dsn, environment, release string, log *logger.StructuredLogger) (*Reporter, error) {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	if dsn == "" {
		return &Reporter{log: log}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return nil, err
	}
	return &Reporter{enabled: true, log: log}, nil
}

// Watch subscribes to sink and reports every uievent.KindError event
// until stop is closed.
func (r *Reporter) Watch(sink *uievent.Sink, stop <-chan struct{}) {
	for {
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return
			}
			if ev.Kind == uievent.KindError {
				r.Report(ev.Text)
			}
		case <-stop:
			return
		}
	}
}

// Report captures msg as a Sentry message event, if enabled.
func (r *Reporter) Report(msg string) {
	if !r.enabled {
		return
	}
	sentry.CaptureMessage(msg)
}

// Flush blocks up to timeout for any buffered events to send, for use
// at shutdown.
func (r *Reporter) Flush(timeout time.Duration) {
	if !r.enabled {
		return
	}
	sentry.Flush(timeout)
}
