package pacesim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testLink(t *testing.T, sched Scheduler, mon *FlowMonitor, queueLimit int, lossRate float64) *Link {
	t.Helper()
	lp := LinkParams{
		Name:       "test",
		Path:       PathParams{Bandwidth: 8000, Latency: 0.1}, // one byte per millisecond
		QueueLimit: queueLimit,
		LossRate:   lossRate,
		Seed:       "link-test",
	}
	lnk, err := CreateLink(lp, sched, mon, nil)
	require.NoError(t, err)
	return lnk
}

func TestLinkDeliversAfterServiceAndLatency(t *testing.T) {
	sched := CreateEvtScheduler(nil)
	mon := CreateFlowMonitor()
	sc := CreateSimConn(1, testLink(t, sched, mon, 0, 0))

	require.ErrorIs(t, sc.Send(make([]byte, 100)), ErrNotConnected)
	require.NoError(t, sc.Bind())
	require.NoError(t, sc.Connect(Endpoint{Addr: "sink", Port: 9}))

	require.NoError(t, sc.Send(make([]byte, 100)))
	require.NoError(t, sc.Send(make([]byte, 100)))
	sched.Run(5.0)

	frs := mon.Records()
	require.Len(t, frs, 1)
	require.Equal(t, uint64(200), frs[0].RxBytes)
	require.InDelta(t, 0.0, frs[0].FirstTx, 1e-9)
	// second unit waits for the first: 0.1 + 0.1 service, then 0.1 propagation
	require.InDelta(t, 0.3, frs[0].LastRx, 1e-6)
	require.Equal(t, 0, mon.Drops(1))

	require.NoError(t, sc.Close())
	require.ErrorIs(t, sc.Send(make([]byte, 1)), ErrNotConnected)
}

func TestLinkDropTail(t *testing.T) {
	sched := CreateEvtScheduler(nil)
	mon := CreateFlowMonitor()
	lnk := testLink(t, sched, mon, 150, 0)
	first := CreateSimConn(1, lnk)
	second := CreateSimConn(2, lnk)
	for _, sc := range []*SimConn{first, second} {
		require.NoError(t, sc.Bind())
		require.NoError(t, sc.Connect(Endpoint{Addr: "sink", Port: 9}))
	}

	require.NoError(t, first.Send(make([]byte, 100)))
	require.NoError(t, second.Send(make([]byte, 100)))
	sched.Run(5.0)

	require.Equal(t, 0, mon.Drops(1))
	require.Equal(t, 1, mon.Drops(2))

	frs := mon.Records()
	require.Len(t, frs, 2)
	require.Equal(t, uint64(100), frs[0].RxBytes)
	require.Equal(t, uint64(0), frs[1].RxBytes)

	// the dropped flow has no measurable transfer
	rr, err := Aggregate(frs, 2, nil)
	require.NoError(t, err)
	require.Equal(t, 1, rr.Excluded)
}

func TestLinkRandomLoss(t *testing.T) {
	sched := CreateEvtScheduler(nil)
	mon := CreateFlowMonitor()
	sc := CreateSimConn(1, testLink(t, sched, mon, 0, 0.5))
	require.NoError(t, sc.Bind())
	require.NoError(t, sc.Connect(Endpoint{Addr: "sink", Port: 9}))

	const units = 200
	for idx := 0; idx < units; idx++ {
		require.NoError(t, sc.Send(make([]byte, 10)))
	}
	sched.Run(100.0)

	frs := mon.Records()
	require.Len(t, frs, 1)
	received := int(frs[0].RxBytes / 10)
	require.Equal(t, units, received+mon.Drops(1))
	require.Greater(t, mon.Drops(1), 0)
	require.Greater(t, received, 0)
}

func TestCreateLinkRejectsUnroutedPath(t *testing.T) {
	_, err := CreateLink(LinkParams{Name: "nowhere"}, CreateEvtScheduler(nil), CreateFlowMonitor(), nil)
	require.Error(t, err)
}
