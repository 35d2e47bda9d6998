package xdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHugePagePolicyNever(t *testing.T) {
	useHuge, err := resolveHugePagePolicy(HugePageNever)
	require.NoError(t, err)
	assert.False(t, useHuge)
}

func TestResolveHugePagePolicyAlways(t *testing.T) {
	useHuge, err := resolveHugePagePolicy(HugePageAlways)
	require.NoError(t, err)
	assert.True(t, useHuge)
}

func TestProbeHugePagesParsesProcMeminfo(t *testing.T) {
	info, err := probeHugePages()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.sizeKB, int64(0))
	assert.GreaterOrEqual(t, info.total, int64(0))
	assert.GreaterOrEqual(t, info.free, int64(0))
}
