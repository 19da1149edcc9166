//go:build pcap
// +build pcap

// Package main replays bridge traffic out of a packet capture. Parsed plane
// events can be re-emitted as UDP datagrams to a live mirror, converted to a
// session log (.arlog), or both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/bitsmakerde/planemirror/internal/provider"
)

var (
	pcapFile = flag.String("pcap", "", "Packet capture to replay (required)")
	udpPort  = flag.Int("udp-port", 4690, "UDP port the capture's bridge traffic used")
	target   = flag.String("target", "", "UDP address to re-emit events to, e.g. localhost:4690")
	outLog   = flag.String("out", "", "Write parsed events to a session log (.arlog)")
	speed    = flag.Float64("speed", 1.0, "Pacing multiplier (0 replays flat out)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("a -pcap file is required")
	}
	if *target == "" && *outLog == "" {
		log.Fatal("nothing to do: set -target and/or -out")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var conn *net.UDPConn
	if *target != "" {
		addr, err := net.ResolveUDPAddr("udp", *target)
		if err != nil {
			log.Fatalf("Failed to resolve target address: %v", err)
		}
		conn, err = net.DialUDP("udp", nil, addr)
		if err != nil {
			log.Fatalf("Failed to dial target: %v", err)
		}
		defer conn.Close()
		log.Printf("Re-emitting events to %s", *target)
	}

	var recorder *provider.Recorder
	if *outLog != "" {
		var err error
		recorder, err = provider.NewRecorder(*outLog, fmt.Sprintf("pcap:%s", *pcapFile))
		if err != nil {
			log.Fatalf("Failed to open session log: %v", err)
		}
		defer recorder.Close()
		log.Printf("Writing session log to %s", *outLog)
	}

	sendErrors := 0
	handler := func(ev provider.PlaneEvent) {
		if recorder != nil {
			if err := recorder.Record(ev); err != nil {
				log.Fatalf("Failed to write session log: %v", err)
			}
		}
		if conn != nil {
			payload, err := provider.MarshalEvent(ev)
			if err != nil {
				log.Printf("Failed to marshal event: %v", err)
				return
			}
			if _, err := conn.Write(payload); err != nil {
				sendErrors++
				if sendErrors%100 == 0 {
					log.Printf("Dropped %d re-emitted datagrams (latest: %v)", sendErrors, err)
				}
			}
		}
	}

	n, err := provider.ReplayPCAP(ctx, *pcapFile, *udpPort, *speed, handler)
	if err != nil && err != context.Canceled {
		log.Fatalf("Replay failed after %d events: %v", n, err)
	}
	log.Printf("Replayed %d events from %s", n, *pcapFile)
}
