package qtrcstore_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/qtrclabs/qtrc"
	"github.com/qtrclabs/qtrc/qtrcstore"
)

func TestCollector(t *testing.T) {
	t.Parallel()

	store := qtrcstore.New(qtrcstore.Config{Budget: 100})
	collector := qtrcstore.NewCollector(store)

	registry := prometheus.NewPedanticRegistry()
	if err := registry.Register(collector); err != nil {
		t.Fatalf("register: %v", err)
	}

	store.WriteSessionRecords(qtrc.NewRecords(nil), true)

	if want, have := 7, testutil.CollectAndCount(collector); want != have {
		t.Errorf("metrics: want %d, have %d", want, have)
	}

	expected := strings.NewReader(`# HELP qtrc_records_written_total Record buffers accepted for persistence.
# TYPE qtrc_records_written_total counter
qtrc_records_written_total 1
`)
	if err := testutil.CollectAndCompare(collector, expected, "qtrc_records_written_total"); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}

	expected = strings.NewReader(`# HELP qtrc_budget_remaining Remaining units of the shared record budget.
# TYPE qtrc_budget_remaining gauge
qtrc_budget_remaining 100
`)
	if err := testutil.CollectAndCompare(collector, expected, "qtrc_budget_remaining"); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}
