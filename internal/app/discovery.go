package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_trackpoint-collector._tcp"
	mdnsDomain      = "local."

	discoveryTimeout = 5 * time.Second
)

// discoverCollector browses mDNS for an advertised collector endpoint and
// adopts the first one found. Used only when no server URL is configured.
func discoverCollector(ctx context.Context, logger *slog.Logger) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := resolver.Browse(browseCtx, mdnsServiceType, mdnsDomain, entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}

	for {
		select {
		case <-browseCtx.Done():
			return "", fmt.Errorf("no collector advertisement within %s", discoveryTimeout)
		case entry, ok := <-entries:
			if !ok {
				return "", fmt.Errorf("no collector advertisement found")
			}
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}

			url := fmt.Sprintf("http://%s:%d", entry.AddrIPv4[0], entry.Port)
			logger.Info("collector discovered via mDNS", "instance", entry.Instance, "url", url)
			return url, nil
		}
	}
}
