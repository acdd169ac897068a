package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/objstore"
)

func TestCollector_ObserveOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveOperation("sqlite", objstore.OpRead, nil, 3*time.Millisecond)
	c.ObserveOperation("sqlite", objstore.OpRead, nil, 4*time.Millisecond)
	c.ObserveOperation("sqlite", objstore.OpRead, errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("sqlite", "read", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OperationsTotal.WithLabelValues("sqlite", "read", StatusError)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.OperationDuration))
}

func TestCollector_AddItems(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.AddItems("mongo", objstore.OpBulkUpsert, objstore.OutcomeNew, 3)
	c.AddItems("mongo", objstore.OpBulkUpsert, objstore.OutcomeNew, 2)
	c.AddItems("mongo", objstore.OpBulkUpsert, objstore.OutcomeIgnored, 0)

	expected := `
# HELP objstore_bulk_items_total Total number of items handled by store operations, by outcome
# TYPE objstore_bulk_items_total counter
objstore_bulk_items_total{backend="mongo",operation="bulkUpsert",outcome="new"} 5
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "objstore_bulk_items_total"))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
