package lifecycle

import (
	"context"

	"github.com/signalsfoundry/target-compass/internal/bridge"
)

type sink struct {
	ctx context.Context
	lc  *Lifecycle
}

// Sink adapts the lifecycle to bridge.LocationSink so a Mailbox can deliver
// inbound traffic to it. ctx carries the session logger and trace context.
func (lc *Lifecycle) Sink(ctx context.Context) bridge.LocationSink {
	return sink{ctx: ctx, lc: lc}
}

func (s sink) OnFix(payload string)        { _ = s.lc.HandleFix(s.ctx, payload) }
func (s sink) OnStatus(payload string)     { s.lc.HandleStatus(s.ctx, payload) }
func (s sink) OnProviderEnabled(p string)  { s.lc.HandleProviderEnabled(s.ctx, p) }
func (s sink) OnProviderDisabled(p string) { s.lc.HandleProviderDisabled(s.ctx, p) }
