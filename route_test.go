package pacesim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteDumbbell(t *testing.T) {
	topo, err := BuildTopology(DefaultScenarioDesc().Links)
	require.NoError(t, err)

	pp, err := topo.Route("n2", "n3")
	require.NoError(t, err)
	require.Equal(t, []string{"n2", "r1", "r2", "n3"}, pp.Hops)
	require.InDelta(t, 0.090, pp.Latency, 1e-12)
	require.Equal(t, 10e6, pp.Bandwidth)

	back, err := topo.Route("n3", "n2")
	require.NoError(t, err)
	require.Equal(t, []string{"n3", "r2", "r1", "n2"}, back.Hops)
	require.InDelta(t, pp.Latency, back.Latency, 1e-12)
}

func TestRoutePrefersLowLatency(t *testing.T) {
	topo, err := BuildTopology([]LinkDesc{
		{A: "a", B: "b", Bandwidth: "1Gbps", Latency: 0.5},
		{A: "a", B: "c", Bandwidth: "100Mbps", Latency: 0.1},
		{A: "c", B: "b", Bandwidth: "20Mbps", Latency: 0.1},
	})
	require.NoError(t, err)

	pp, err := topo.Route("a", "b")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c", "b"}, pp.Hops)
	require.InDelta(t, 0.2, pp.Latency, 1e-12)
	require.Equal(t, 20e6, pp.Bandwidth)
}

func TestRouteErrors(t *testing.T) {
	topo, err := BuildTopology([]LinkDesc{
		{A: "a", B: "b", Bandwidth: "1Mbps", Latency: 0.01},
		{A: "c", B: "d", Bandwidth: "1Mbps", Latency: 0.01},
	})
	require.NoError(t, err)

	_, err = topo.Route("a", "d")
	require.Error(t, err)
	_, err = topo.Route("a", "zz")
	require.Error(t, err)
	_, err = topo.Route("a", "a")
	require.Error(t, err)

	_, err = BuildTopology([]LinkDesc{{A: "a", B: "a", Bandwidth: "1Mbps"}})
	require.Error(t, err)
	_, err = BuildTopology([]LinkDesc{{A: "a", B: "b", Bandwidth: "slow"}})
	require.Error(t, err)
	_, err = BuildTopology([]LinkDesc{
		{A: "a", B: "b", Bandwidth: "1Mbps"},
		{A: "b", B: "a", Bandwidth: "2Mbps"},
	})
	require.Error(t, err)
}
