package qtrcstore_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/qtrclabs/qtrc"
	"github.com/qtrclabs/qtrc/qtrcstore"
)

func TestSyncWriteIsImmediate(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{})

	r := qtrc.NewRecords(nil)
	r.AddEvent("an event")
	store.WriteSessionRecords(r, true)

	if want, have := 1, store.WrittenCount(); want != have {
		t.Errorf("written: want %d, have %d", want, have)
	}
	if want, have := uint64(1), store.Stats().RecordsWritten.Load(); want != have {
		t.Errorf("records written: want %d, have %d", want, have)
	}
}

func TestAsyncWriteGoesThroughQueue(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{})

	store.WriteSessionRecords(qtrc.NewRecords(nil), false)
	if want, have := 0, store.WrittenCount(); want != have {
		t.Fatalf("written before run: want %d, have %d", want, have)
	}

	// A canceled context makes Run drain whatever is queued and return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if want, have := context.Canceled, store.Run(ctx); want != have {
		t.Fatalf("run error: want %v, have %v", want, have)
	}

	if want, have := 1, store.WrittenCount(); want != have {
		t.Errorf("written after run: want %d, have %d", want, have)
	}
}

func TestQueueOverflowDrops(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{QueueSize: 1})

	overflow := qtrc.NewRecords(nil)
	overflow.AddEvent("will be dropped")

	store.WriteSessionRecords(qtrc.NewRecords(nil), false)
	store.WriteSessionRecords(overflow, false)

	if want, have := uint64(1), store.Stats().QueueDrops.Load(); want != have {
		t.Errorf("queue drops: want %d, have %d", want, have)
	}
	if want, have := uint64(1), store.Stats().RecordsDropped.Load(); want != have {
		t.Errorf("records dropped: want %d, have %d", want, have)
	}
	if want, have := 0, overflow.Size(); want != have {
		t.Errorf("overflow records not dropped: want size %d, have %d", want, have)
	}
}

func TestRetainEvictsOldest(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{Retain: 2})

	var first *qtrc.Records
	for i := 0; i < 3; i++ {
		r := qtrc.NewRecords(nil)
		if i == 0 {
			first = r
		}
		store.WriteSessionRecords(r, true)
	}

	written := store.Written()
	if want, have := 2, len(written); want != have {
		t.Fatalf("retained: want %d, have %d", want, have)
	}
	for _, r := range written {
		if r == first {
			t.Error("oldest record still retained")
		}
	}
}

func TestSessionLifecycleEndToEnd(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{})

	s := store.NewSession(qtrc.RolePrimary)
	s.Begin()
	s.AddQuery("SELECT value FROM kv WHERE key = ?")
	s.SetConsistency(qtrc.ConsistencyQuorum)
	s.Tracef("reading key %q", "alpha")
	s.Close()

	// Run with a canceled context to flush the async write.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store.Run(ctx)

	if want, have := uint64(1), store.Stats().SessionsEnded.Load(); want != have {
		t.Errorf("sessions ended: want %d, have %d", want, have)
	}

	written := store.Written()
	if want, have := 1, len(written); want != have {
		t.Fatalf("written: want %d, have %d", want, have)
	}

	wantParams := map[string]string{
		"query":             "SELECT value FROM kv WHERE key = ?",
		"consistency_level": "QUORUM",
	}
	if diff := cmp.Diff(wantParams, written[0].Session().Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +have):\n%s", diff)
	}
	if want, have := 1, written[0].Size(); want != have {
		t.Errorf("events: want %d, have %d", want, have)
	}
}

func TestStoreBudgetSharedAcrossSessions(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{Budget: 3})

	s1 := store.NewSession(qtrc.RolePrimary)
	s2 := store.NewSession(qtrc.RolePrimary)
	s1.Begin()
	s2.Begin()

	s1.Tracef("one")
	s1.Tracef("two")
	s2.Tracef("three")
	s2.Tracef("four") // budget exhausted

	if want, have := 2, s1.Records().Size(); want != have {
		t.Errorf("s1 events: want %d, have %d", want, have)
	}
	if want, have := 1, s2.Records().Size(); want != have {
		t.Errorf("s2 events: want %d, have %d", want, have)
	}
	if want, have := 1, s2.Records().RefusedEvents(); want != have {
		t.Errorf("s2 refused: want %d, have %d", want, have)
	}
}
