//go:build !pcap
// +build !pcap

package provider

import (
	"context"
	"fmt"
)

// ReplayPCAP requires building with the pcap tag, which links libpcap.
func ReplayPCAP(ctx context.Context, path string, udpPort int, speed float64, handler Handler) (int, error) {
	return 0, fmt.Errorf("pcap support not compiled in; rebuild with -tags pcap")
}
