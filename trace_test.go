package pacesim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTraceManagerInactive(t *testing.T) {
	tm := CreateTraceManager("off", false)
	AddSenderTrace(tm, 1.0, 1, "emit", 1)
	require.Empty(t, tm.Traces)
	require.NoError(t, tm.WriteToFile(filepath.Join(t.TempDir(), "never.yaml")))
}

func TestTraceManagerWriteToFile(t *testing.T) {
	tm := CreateTraceManager("exp", true)
	AddSenderTrace(tm, 0.5, 2, "start", 0)
	AddSenderTrace(tm, 0.5, 2, "emit", 1)
	AddSenderTrace(tm, 0.25, 1, "emit", 1)
	require.Equal(t, []int{1, 2}, tm.FlowIDs())
	require.Equal(t, 1, tm.Count(2, "emit"))
	require.InDelta(t, 0.5, tm.Traces[2][1].Time, 1e-9)

	filename := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, tm.WriteToFile(filename))

	bytes, err := os.ReadFile(filename)
	require.NoError(t, err)
	var got TraceManager
	require.NoError(t, yaml.Unmarshal(bytes, &got))
	require.Equal(t, "exp", got.ExpName)
	require.Len(t, got.Traces[2], 2)
	require.Equal(t, "start", got.Traces[2][0].Op)

	require.Error(t, tm.WriteToFile(filepath.Join(t.TempDir(), "trace.csv")))
}
