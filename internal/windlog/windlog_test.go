package windlog

import (
	"path/filepath"
	"testing"
)

const t0 = int64(1700000000000)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "windlog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadBack(t *testing.T) {
	db := newTestDB(t)

	if err := db.RecordReading(45, 5, t0); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordReading(90, 2.5, t0+2000); err != nil {
		t.Fatal(err)
	}

	readings, err := db.ReadingsSince(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].Direction != 45 || readings[0].Speed != 5 || readings[0].When != t0 {
		t.Errorf("first reading = %+v", readings[0])
	}
}

func TestReadingsSinceOrderAndFilter(t *testing.T) {
	db := newTestDB(t)

	// Insert out of order; reads must come back in when_ms order.
	for _, when := range []int64{t0 + 4000, t0, t0 + 2000} {
		if err := db.RecordReading(0, 1, when); err != nil {
			t.Fatal(err)
		}
	}

	readings, err := db.ReadingsSince(t0 + 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings[0].When != t0+2000 || readings[1].When != t0+4000 {
		t.Errorf("order = [%d, %d]", readings[0].When, readings[1].When)
	}
}

func TestRecordNormalizes(t *testing.T) {
	db := newTestDB(t)

	// Seconds-precision timestamp and out-of-range direction are
	// normalized before hitting the log.
	if err := db.RecordReading(-90, 3, t0/1000); err != nil {
		t.Fatal(err)
	}
	readings, err := db.ReadingsSince(0)
	if err != nil {
		t.Fatal(err)
	}
	if readings[0].Direction != 270 || readings[0].When != t0 {
		t.Errorf("stored reading = %+v", readings[0])
	}
}

func TestPrune(t *testing.T) {
	db := newTestDB(t)
	for i := int64(0); i < 10; i++ {
		if err := db.RecordReading(0, 1, t0+i*1000); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.Prune(t0 + 5000)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("pruned %d rows, want 5", n)
	}
	count, err := db.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("count after prune = %d, want 5", count)
	}
}
