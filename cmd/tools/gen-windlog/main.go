// Command gen-windlog generates a sample reading log for testing the
// history endpoints and the rose without an instrument attached.
package main

import (
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/faceless2/anemometer/internal/windlog"
)

func main() {
	output := flag.String("o", "sample_wind.db", "output database path")
	count := flag.Int("n", 1000, "number of readings")
	step := flag.Int64("step", 2000, "milliseconds between readings")
	calm := flag.Float64("calm", 0.05, "fraction of calm (zero speed) readings")
	flag.Parse()

	db, err := windlog.NewDB(*output)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *output, err)
	}
	defer db.Close()

	when := time.Now().UnixMilli() - int64(*count)*(*step)
	dir := rand.Float64() * 360
	speed := 8 + rand.Float64()*6

	for i := 0; i < *count; i++ {
		dir += rand.Float64()*16 - 8
		if dir < 0 {
			dir += 360
		} else if dir >= 360 {
			dir -= 360
		}
		speed += rand.Float64()*2 - 1
		if speed < 0 {
			speed = 0
		}

		s := speed
		if rand.Float64() < *calm {
			s = 0
		}
		if err := db.RecordReading(dir, s, when); err != nil {
			log.Fatalf("failed to record reading: %v", err)
		}
		when += *step

		if (i+1)%200 == 0 {
			log.Printf("%d/%d readings", i+1, *count)
		}
	}
	log.Printf("✓ Created: %s", *output)
}
