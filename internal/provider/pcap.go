//go:build pcap
// +build pcap

package provider

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReplayPCAP feeds plane events out of a packet capture of bridge traffic.
// Only UDP payloads on udpPort are considered; anything that fails to parse
// is skipped. speed scales capture-time gaps (1 = real time, <= 0 runs flat
// out). Returns the number of events delivered.
func ReplayPCAP(ctx context.Context, path string, udpPort int, speed float64, handler Handler) (int, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return 0, fmt.Errorf("open pcap %s: %w", path, err)
	}
	defer handle.Close()

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		return 0, fmt.Errorf("set bpf filter %q: %w", filter, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var delivered int
	var prev time.Time
	for packet := range source.Packets() {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		ev, err := ParseEvent(udp.Payload)
		if err != nil {
			log.Printf("[provider] skipping unparseable pcap datagram: %v", err)
			continue
		}

		ts := packet.Metadata().Timestamp
		if speed > 0 && !prev.IsZero() && ts.After(prev) {
			gap := time.Duration(float64(ts.Sub(prev)) / speed)
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(gap):
			}
		}
		prev = ts

		if ev.UnixNanos == 0 {
			ev.UnixNanos = ts.UnixNano()
		}
		handler(ev)
		delivered++
	}
	log.Printf("[provider] pcap replay delivered %d events from %s", delivered, path)
	return delivered, nil
}
