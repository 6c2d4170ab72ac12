package broadcast

import (
	"context"

	"github.com/brutella/dnssd"
)

// dnssdServiceType is the mDNS/DNS-SD service type advertised for the
// live-broadcast websocket endpoint, mirroring the teacher's own
// "_kiss-tnc._tcp" announcement for its KISS-over-TCP service.
const dnssdServiceType = "_seismo-ws._tcp"

// announce advertises the broadcaster on the local network via
// mDNS/DNS-SD so viewers don't need a hardcoded address. Failure is
// logged and otherwise ignored: discovery is a convenience, not a
// requirement for the broadcast endpoint to function.
func announce(ctx context.Context, name string, port int) {
	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: dnssdServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		logger.Error("dnssd: failed to create service", "err", err)
		return
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		logger.Error("dnssd: failed to create responder", "err", err)
		return
	}

	if _, err := responder.Add(svc); err != nil {
		logger.Error("dnssd: failed to add service", "err", err)
		return
	}

	logger.Info("dnssd: announcing live broadcast", "port", port, "name", name)

	go func() {
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dnssd: responder exited", "err", err)
		}
	}()
}
