// Package udpwind receives NMEA wind sentences over UDP, the transport
// used by network bridges like kplex and most WiFi-equipped instruments
// (conventionally port 10110).
package udpwind

import (
	"context"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/faceless2/anemometer/internal/serialmux"
)

// Listener receives datagrams and feeds any wind sentences they carry
// into a WindHandler. One datagram may carry several lines.
type Listener struct {
	Addr    string
	Handler *serialmux.WindHandler
}

// Run listens until the context is cancelled. Per-second packet rates
// are logged while traffic is flowing.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.Addr)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("UDP listener started on %s", l.Addr)

	var packetCount int64
	var byteCount int64

	// Statistics goroutine
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				packets := atomic.SwapInt64(&packetCount, 0)
				bytes := atomic.SwapInt64(&byteCount, 0)
				if packets > 0 {
					log.Printf("UDP received %d packets, %.1f KB", packets, float64(bytes)/1024)
				}
			}
		}
	}()

	// Close the socket when the context ends so the read loop unblocks.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buffer := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("UDP read error: %v", err)
			continue
		}

		atomic.AddInt64(&packetCount, 1)
		atomic.AddInt64(&byteCount, int64(n))

		l.dispatch(string(buffer[:n]))
	}
}

func (l *Listener) dispatch(packet string) {
	for _, line := range strings.Split(packet, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := l.Handler.HandleEvent(line); err != nil {
			log.Printf("UDP line dropped: %v", err)
		}
	}
}
