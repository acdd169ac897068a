package sqlstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softkave/fimidx-sub001/internal/harness"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/sqlstore"
)

func TestConformance(t *testing.T) {
	harness.Conformance(t, func(t *testing.T) objstore.Backend {
		s, err := sqlstore.Open(filepath.Join(t.TempDir(), "objs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
