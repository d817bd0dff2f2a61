package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInstrumentLoad(t *testing.T) {
	before := testutil.ToFloat64(VolumeLoads(LoadOK))
	InstrumentLoad(LoadOK)
	InstrumentLoad(LoadOK)
	require.Equal(t, before+2, testutil.ToFloat64(VolumeLoads(LoadOK)))
}

func TestInstrumentMarch(t *testing.T) {
	marchesBefore := testutil.ToFloat64(Marches())
	spansBefore := testutil.ToFloat64(MarchSpans())
	samplesBefore := testutil.ToFloat64(MarchSamples())

	InstrumentMarch(2, 19)

	require.Equal(t, marchesBefore+1, testutil.ToFloat64(Marches()))
	require.Equal(t, spansBefore+2, testutil.ToFloat64(MarchSpans()))
	require.Equal(t, samplesBefore+19, testutil.ToFloat64(MarchSamples()))
}

func TestInstrumentAPIError(t *testing.T) {
	before := testutil.ToFloat64(APIErrors("unknown"))
	InstrumentAPIError("unknown")
	require.Equal(t, before+1, testutil.ToFloat64(APIErrors("unknown")))
}
