//go:build pcap
// +build pcap

// Command pcap-replay extracts NMEA wind traffic from a packet capture
// and re-encodes it as a history payload that can be POSTed to
// /api/load. Captures from a boat network carry wind sentences as UDP
// broadcast, conventionally on port 10110.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/faceless2/anemometer/internal/history"
	"github.com/faceless2/anemometer/internal/nmea"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/units"
)

var (
	pcapFile  = flag.String("pcap", "", "input capture file (required)")
	output    = flag.String("o", "-", "output payload path, - for stdout")
	udpPort   = flag.Int("port", 10110, "UDP port carrying NMEA traffic")
	arcs      = flag.Int("arcs", 18, "number of direction arcs for delta encoding")
	bandsFlag = flag.String("bands", "5,10,15,20,200", "comma-separated band boundaries")
	step      = flag.Int64("step", history.DefaultStep, "virtual clock step in milliseconds")
	unitsFlag = flag.String("units", units.Knots, "speed unit for the encoded readings")
)

func parseBands(s string) ([]float64, error) {
	var bands []float64
	for _, f := range strings.Split(s, ",") {
		var b float64
		if _, err := fmt.Sscanf(strings.TrimSpace(f), "%g", &b); err != nil {
			return nil, fmt.Errorf("bad band %q: %v", f, err)
		}
		bands = append(bands, b)
	}
	return bands, nil
}

// readCapture walks the capture and returns one reading per valid MWV
// sentence, stamped with the packet capture time.
func readCapture(ctx context.Context, path string, port int, targetUnits string) ([]rose.Reading, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", port)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return nil, fmt.Errorf("failed to set BPF filter %q: %w", filterStr, err)
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	var readings []rose.Reading
	packets, dropped := 0, 0

	for {
		select {
		case <-ctx.Done():
			return readings, ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				log.Printf("capture complete: %d packets, %d readings, %d lines dropped",
					packets, len(readings), dropped)
				return readings, nil
			}
			packets++

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			when := packet.Metadata().Timestamp.UnixMilli()
			for _, line := range strings.Split(string(udp.Payload), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || !strings.Contains(line, "MWV") {
					continue
				}
				m, err := nmea.ParseWind(line)
				if err != nil {
					dropped++
					continue
				}
				speed := units.ConvertSpeed(m.Speed, targetUnits)
				readings = append(readings, rose.NewReading(m.Angle, speed, when))
			}
		}
	}
}

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("Error: -pcap flag is required")
	}

	bands, err := parseBands(*bandsFlag)
	if err != nil {
		log.Fatalf("invalid bands: %v", err)
	}
	grid, err := rose.NewGridArcs(*arcs, bands)
	if err != nil {
		log.Fatalf("invalid grid: %v", err)
	}

	readings, err := readCapture(context.Background(), *pcapFile, *udpPort, *unitsFlag)
	if err != nil {
		log.Fatalf("failed to read capture: %v", err)
	}
	if len(readings) == 0 {
		log.Fatal("no wind readings found in capture")
	}

	payload, err := history.EncodeDelta(readings, grid, *step)
	if err != nil {
		log.Fatalf("failed to encode payload: %v", err)
	}

	out := os.Stdout
	if *output != "-" {
		out, err = os.Create(*output)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *output, err)
		}
		defer out.Close()
	}

	w := bufio.NewWriter(out)
	defer w.Flush()
	enc := json.NewEncoder(w)
	if err := enc.Encode(payload); err != nil {
		log.Fatalf("failed to write payload: %v", err)
	}
	if *output != "-" {
		log.Printf("✓ Created: %s (%d readings)", *output, len(readings))
	}
}
