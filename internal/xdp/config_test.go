package xdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigHugePagePolicyDefaultsToAuto(t *testing.T) {
	var c Config
	assert.Equal(t, HugePageAuto, c.hugePagePolicy())

	c.HugePage = boolPtr(true)
	assert.Equal(t, HugePageAlways, c.hugePagePolicy())

	c.HugePage = boolPtr(false)
	assert.Equal(t, HugePageNever, c.hugePagePolicy())
}

func TestConfigNeedWakeupDefaultsToTrue(t *testing.T) {
	var c Config
	assert.True(t, c.needWakeup())

	c.NeedWakeup = boolPtr(false)
	assert.False(t, c.needWakeup())
}

func TestConfigBindFlags(t *testing.T) {
	var c Config
	assert.Equal(t, uint16(xdpUseNeedWakeup), c.bindFlags())

	c.NeedWakeup = boolPtr(false)
	c.ZeroCopy = boolPtr(true)
	assert.Equal(t, uint16(xdpZerocopy), c.bindFlags())

	c.ZeroCopy = boolPtr(false)
	assert.Equal(t, uint16(xdpCopy), c.bindFlags())
}
