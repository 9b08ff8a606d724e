package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	RegistryQueriesTotal.WithLabelValues("not_found").Inc()

	path := filepath.Join(t.TempDir(), "releaseplan.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `releaseplan_registry_queries_total{outcome="not_found"}`))
}

func TestWriteTextfileEmptyPath(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))
}

func TestCollectorsRegistered(t *testing.T) {
	n, err := testutil.GatherAndCount(Registry, "releaseplan_impact_set_size")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
