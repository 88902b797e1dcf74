package store

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/loganalyzer/logview/pkg/models"
)

var testKey = models.SubscriptionKey{Account: "acc", Cluster: "c1", TrackingID: "t1"}

func record(source string, ts float64, msg string) models.LogRecord {
	return models.LogRecord{
		Key:       testKey,
		SourceID:  source,
		Message:   msg,
		Timestamp: models.NumericTimestamp(ts),
	}
}

func collect(s *Store) []models.LogRecord {
	var out []models.LogRecord
	for r := range s.Snapshot() {
		out = append(out, r)
	}
	return out
}

func TestAppendKeepsOrder(t *testing.T) {
	s := New(0)
	s.Bind(testKey)

	var input []models.LogRecord
	for i := 0; i < 200; i++ {
		source := []string{"pod-a", "pod-b", "pod-c"}[i%3]
		input = append(input, record(source, float64(i%17), "line"))
	}
	rand.New(rand.NewSource(7)).Shuffle(len(input), func(i, j int) {
		input[i], input[j] = input[j], input[i]
	})

	for _, r := range input {
		if !s.Append(r) {
			t.Fatal("Append() rejected a record for the bound key")
		}
	}

	got := collect(s)
	if len(got) != len(input) {
		t.Fatalf("len = %d, want %d", len(got), len(input))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Less(got[i-1]) {
			t.Fatalf("record %d out of order: %+v before %+v", i, got[i-1], got[i])
		}
	}
}

func TestInOrderArrivalIsStable(t *testing.T) {
	s := New(0)
	s.Bind(testKey)

	s.Append(record("pod-a", 1, "first"))
	s.Append(record("pod-a", 1, "second"))
	s.Append(record("pod-a", 2, "third"))

	var msgs []string
	for r := range s.Snapshot() {
		msgs = append(msgs, r.Message)
	}
	if want := []string{"first", "second", "third"}; !slices.Equal(msgs, want) {
		t.Errorf("messages = %v, want %v", msgs, want)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s := New(0)
	s.Bind(testKey)
	s.Append(record("pod-a", 1, "x"))

	s.Reset()
	v := s.Version()
	s.Reset()

	if s.Len() != 0 {
		t.Errorf("Len() = %d after reset", s.Len())
	}
	if s.Version() != v {
		t.Errorf("second Reset() changed version %d -> %d", v, s.Version())
	}
	if s.Key() != testKey {
		t.Errorf("Reset() should keep the bound key, got %v", s.Key())
	}
}

func TestSnapshotIsRestartableAndIsolated(t *testing.T) {
	s := New(0)
	s.Bind(testKey)
	s.Append(record("pod-b", 1, "b1"))
	s.Append(record("pod-b", 2, "b2"))

	snap := s.Snapshot()

	// a middle insert and a tail append after the snapshot
	s.Append(record("pod-a", 1, "a1"))
	s.Append(record("pod-b", 3, "b3"))

	for pass := 0; pass < 2; pass++ {
		var msgs []string
		for r := range snap {
			msgs = append(msgs, r.Message)
		}
		if want := []string{"b1", "b2"}; !slices.Equal(msgs, want) {
			t.Errorf("pass %d: snapshot = %v, want %v", pass, msgs, want)
		}
	}

	var msgs []string
	for r := range s.Snapshot() {
		msgs = append(msgs, r.Message)
	}
	if want := []string{"a1", "b1", "b2", "b3"}; !slices.Equal(msgs, want) {
		t.Errorf("current = %v, want %v", msgs, want)
	}
}

func TestSnapshotEarlyBreak(t *testing.T) {
	s := New(0)
	s.Bind(testKey)
	for i := 0; i < 5; i++ {
		s.Append(record("pod", float64(i), "x"))
	}

	n := 0
	for range s.Snapshot() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d records, want 2", n)
	}
}

func TestDiscardsOtherSubscriptions(t *testing.T) {
	other := models.SubscriptionKey{Account: "acc", Cluster: "c1", TrackingID: "old"}

	tests := []struct {
		name  string
		bound models.SubscriptionKey
		rec   models.SubscriptionKey
		want  bool
	}{
		{"matching key", testKey, testKey, true},
		{"late record from old key", testKey, other, false},
		{"nothing bound", models.SubscriptionKey{}, testKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0)
			s.Bind(tt.bound)
			v := s.Version()

			r := record("pod", 1, "x")
			r.Key = tt.rec
			if got := s.Append(r); got != tt.want {
				t.Errorf("Append() = %v, want %v", got, tt.want)
			}
			if changed := s.Version() != v; changed != tt.want {
				t.Errorf("version changed = %v, want %v", changed, tt.want)
			}
		})
	}
}

func TestBindResets(t *testing.T) {
	s := New(0)
	s.Bind(testKey)
	s.Append(record("pod", 1, "x"))

	next := models.SubscriptionKey{Account: "acc", Cluster: "c1", TrackingID: "t2"}
	s.Bind(next)

	if s.Len() != 0 {
		t.Errorf("Len() = %d after rebinding", s.Len())
	}
	if s.Append(record("pod", 2, "late")) {
		t.Error("record for the previous key should be discarded")
	}
	if s.Discarded() != 1 {
		t.Errorf("Discarded() = %d, want 1", s.Discarded())
	}
}

func TestCapacityEvictsOldestArrival(t *testing.T) {
	s := New(3)
	s.Bind(testKey)

	s.Append(record("pod-b", 1, "first"))
	s.Append(record("pod-a", 1, "second"))
	s.Append(record("pod-c", 1, "third"))
	s.Append(record("pod-a", 2, "fourth"))

	var msgs []string
	for r := range s.Snapshot() {
		msgs = append(msgs, r.Message)
	}
	if want := []string{"second", "fourth", "third"}; !slices.Equal(msgs, want) {
		t.Errorf("messages = %v, want %v", msgs, want)
	}
	if s.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", s.Dropped())
	}
}

func TestAppendBatch(t *testing.T) {
	s := New(0)
	s.Bind(testKey)

	stale := record("pod", 0, "stale")
	stale.Key = models.SubscriptionKey{Account: "x", Cluster: "y", TrackingID: "z"}

	n := s.AppendBatch([]models.LogRecord{
		record("pod", 2, "b"),
		stale,
		record("pod", 1, "a"),
	})
	if n != 2 {
		t.Errorf("AppendBatch() = %d, want 2", n)
	}
	if s.Version() != 1 {
		t.Errorf("Version() = %d, want 1", s.Version())
	}

	got := collect(s)
	if got[0].Message != "a" || got[1].Message != "b" {
		t.Errorf("batch not sorted: %+v", got)
	}
	if got[0].Seq < got[1].Seq {
		t.Errorf("seq should follow arrival, not position: a=%d b=%d", got[0].Seq, got[1].Seq)
	}
}
