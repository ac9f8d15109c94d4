package qtrc_test

import (
	"strings"
	"testing"

	"github.com/qtrclabs/qtrc"
)

func TestRecordsAddEvent(t *testing.T) {
	t.Parallel()

	r := qtrc.NewRecords(qtrc.NewBudget(2))

	if ok := r.AddEvent("first %d", 1); !ok {
		t.Fatal("first event refused")
	}
	if ok := r.AddEvent("second"); !ok {
		t.Fatal("second event refused")
	}
	if ok := r.AddEvent("third"); ok {
		t.Fatal("third event admitted past the budget")
	}

	if want, have := 2, r.Size(); want != have {
		t.Errorf("size: want %d, have %d", want, have)
	}
	if want, have := 1, r.RefusedEvents(); want != have {
		t.Errorf("refused: want %d, have %d", want, have)
	}

	evs := r.Events()
	if want, have := "first 1", evs[0].What; want != have {
		t.Errorf("event what: want %q, have %q", want, have)
	}
	if evs[0].When.IsZero() {
		t.Error("event when is zero")
	}
}

func TestRecordsDropIdempotent(t *testing.T) {
	t.Parallel()

	r := qtrc.NewRecords(nil)
	r.AddEvent("one")
	r.AddEvent("two")

	r.DropRecords()
	r.DropRecords()

	if want, have := 0, r.Size(); want != have {
		t.Errorf("size after drop: want %d, have %d", want, have)
	}
	if params := r.Session().Parameters; params != nil {
		t.Errorf("parameters after drop: want nil, have %v", params)
	}
}

func TestRecordsNilBudgetAdmitsEverything(t *testing.T) {
	t.Parallel()

	r := qtrc.NewRecords(nil)
	for i := 0; i < 1000; i++ {
		if !r.AddEvent("event %d", i) {
			t.Fatalf("event %d refused with nil budget", i)
		}
	}
	if want, have := 1000, r.Size(); want != have {
		t.Errorf("size: want %d, have %d", want, have)
	}
}

func TestRecordsEventArgsEvaluatedImmediately(t *testing.T) {
	t.Parallel()

	r := qtrc.NewRecords(nil)
	a := []int{1, 2, 3}
	r.AddEvent("a=%v", a)
	a[0] = 0

	if want, have := "a=[1 2 3]", r.Events()[0].What; want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}

func TestBudget(t *testing.T) {
	t.Parallel()

	t.Run("try consume stops at zero", func(t *testing.T) {
		t.Parallel()

		b := qtrc.NewBudget(2)
		if !b.TryConsume() || !b.TryConsume() {
			t.Fatal("consume refused with budget available")
		}
		if b.TryConsume() {
			t.Fatal("consume admitted past zero")
		}
		if want, have := int64(0), b.Remaining(); want != have {
			t.Errorf("remaining: want %d, have %d", want, have)
		}
	})

	t.Run("consume goes negative", func(t *testing.T) {
		t.Parallel()

		b := qtrc.NewBudget(1)
		b.Consume()
		b.Consume()
		if want, have := int64(-1), b.Remaining(); want != have {
			t.Errorf("remaining: want %d, have %d", want, have)
		}
	})

	t.Run("nil budget is safe", func(t *testing.T) {
		t.Parallel()

		var b *qtrc.Budget
		b.Consume()
		if !b.TryConsume() {
			t.Error("nil budget refused an event")
		}
		if want, have := int64(0), b.Remaining(); want != have {
			t.Errorf("remaining: want %d, have %d", want, have)
		}
	})
}

func TestConsistencyStrings(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		cl   qtrc.Consistency
		want string
	}{
		{qtrc.ConsistencyAny, "ANY"},
		{qtrc.ConsistencyOne, "ONE"},
		{qtrc.ConsistencyQuorum, "QUORUM"},
		{qtrc.ConsistencyAll, "ALL"},
		{qtrc.ConsistencyLocalQuorum, "LOCAL_QUORUM"},
		{qtrc.ConsistencyEachQuorum, "EACH_QUORUM"},
		{qtrc.ConsistencySerial, "SERIAL"},
		{qtrc.ConsistencyLocalSerial, "LOCAL_SERIAL"},
		{qtrc.ConsistencyLocalOne, "LOCAL_ONE"},
	} {
		if have := tc.cl.String(); tc.want != have {
			t.Errorf("want %q, have %q", tc.want, have)
		}
	}

	if have := qtrc.Consistency(200).String(); !strings.Contains(have, "UNKNOWN") {
		t.Errorf("invalid consistency: want UNKNOWN placeholder, have %q", have)
	}
}
