package pacesim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionalClassTable(t *testing.T) {
	ct, err := PositionalClassTable(6, []string{"n0->n1", "n1->n0"}, []string{"Westwood", "Veno", "Vegas"})
	require.NoError(t, err)

	want := ClassTable{
		1: {Direction: "n0->n1", Algorithm: "Westwood"},
		2: {Direction: "n0->n1", Algorithm: "Westwood"},
		3: {Direction: "n0->n1", Algorithm: "Veno"},
		4: {Direction: "n1->n0", Algorithm: "Veno"},
		5: {Direction: "n1->n0", Algorithm: "Vegas"},
		6: {Direction: "n1->n0", Algorithm: "Vegas"},
	}
	require.Equal(t, want, ct)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6}, ct.FlowIDs())
}

func TestPositionalClassTableOtherShapes(t *testing.T) {
	ct, err := PositionalClassTable(4, []string{"up"}, []string{"Reno", "Cubic", "Bbr", "Vegas"})
	require.NoError(t, err)
	require.Len(t, ct, 4)
	fc, ok := ct.Lookup(3)
	require.True(t, ok)
	require.Equal(t, FlowClass{Direction: "up", Algorithm: "Bbr"}, fc)

	_, err = PositionalClassTable(5, []string{"up", "down"}, []string{"Reno"})
	require.Error(t, err)
	_, err = PositionalClassTable(6, []string{"up"}, nil)
	require.Error(t, err)
	_, err = PositionalClassTable(0, []string{"up"}, []string{"Reno"})
	require.ErrorIs(t, err, ErrBadFlowCount)
}

func TestClassTableDescs(t *testing.T) {
	cds := []ClassDesc{
		{FlowID: 9, Direction: "down", Algorithm: "Cubic"},
		{FlowID: 2, Direction: "up", Algorithm: "Reno"},
	}
	ct, err := ClassTableFromDescs(cds)
	require.NoError(t, err)
	require.Equal(t, []ClassDesc{cds[1], cds[0]}, ct.Descs())

	_, err = ClassTableFromDescs(append(cds, ClassDesc{FlowID: 2}))
	require.Error(t, err)

	var empty ClassTable
	_, ok := empty.Lookup(1)
	require.False(t, ok)
}
