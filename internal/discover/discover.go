package discover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"

	"github.com/fold-ecosystemics/espstream/internal/utils"
)

const (
	serviceType   = "_https._tcp"
	serviceDomain = "local."
	devicePrefix  = "esp-"
)

// Device is one ESP device advertising on the local network.
type Device struct {
	ID       string // mDNS instance name, e.g. "esp-streamer01"
	HostName string
	Port     int
}

// Discoverer finds stream-capable devices on the local network.
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) ([]Device, error)
}

// MDNS browses _https._tcp.local. advertisements via zeroconf.
type MDNS struct{}

func (MDNS) Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	log := utils.GetLogger("discovery")
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating mDNS resolver: %v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := collect(entries, log)
	if err := resolver.Browse(ctx, serviceType, serviceDomain, entries); err != nil {
		// Browse never took ownership of the channel; close it so the
		// collector terminates.
		close(entries)
		<-collected
		return nil, fmt.Errorf("error browsing mDNS services: %v", err)
	}
	<-ctx.Done()
	return <-collected, nil
}

// collect drains entries until the channel closes, keeping ESP device
// advertisements in arrival order. The result is delivered exactly
// once on the returned channel.
func collect(entries <-chan *zeroconf.ServiceEntry, log zerolog.Logger) <-chan []Device {
	collected := make(chan []Device, 1)
	go func() {
		var devices []Device
		for entry := range entries {
			device, ok := fromEntry(entry)
			if !ok {
				continue
			}
			log.Debug().Str("instance", device.ID).Str("host", device.HostName).Msg("Found device advertisement")
			devices = appendDevice(devices, device)
		}
		collected <- devices
	}()
	return collected
}

// fromEntry keeps only ESP device advertisements.
func fromEntry(entry *zeroconf.ServiceEntry) (Device, bool) {
	if !strings.HasPrefix(entry.Instance, devicePrefix) {
		return Device{}, false
	}
	return Device{
		ID:       entry.Instance,
		HostName: strings.TrimSuffix(entry.HostName, "."),
		Port:     entry.Port,
	}, true
}

// appendDevice preserves arrival order and drops re-announcements.
func appendDevice(devices []Device, device Device) []Device {
	for _, d := range devices {
		if d.ID == device.ID {
			return devices
		}
	}
	return append(devices, device)
}

// BaseURL is the HTTPS endpoint root for a discovered device.
func (d Device) BaseURL() string {
	port := d.Port
	if port == 0 {
		port = 443
	}
	return fmt.Sprintf("https://%s.local:%d", d.ID, port)
}
