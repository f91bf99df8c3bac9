package pipectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/feature"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
)

func validContext() Context {
	return Context{
		OutputDir: "/tmp/out",
		Channels: ChannelConfig{
			PC: &PCChannel{Channel: 0, Features: []string{"area"}},
			FL: []FLChannel{{Channel: 1, Features: []string{"intensity_total"}}},
		},
		Params: DefaultParams(),
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := validContext()
	assert.NoError(t, c.Validate(feature.Default))
}

func TestValidateRequiresPCChannel(t *testing.T) {
	c := validContext()
	c.Channels.PC = nil
	err := c.Validate(feature.Default)
	require.Error(t, err)
	assert.Equal(t, perr.ConfigError, perr.KindOf(err))
}

func TestValidateRejectsEvenSegWindow(t *testing.T) {
	c := validContext()
	c.Params.SegWindow = 4
	err := c.Validate(feature.Default)
	require.Error(t, err)
	assert.Equal(t, perr.ConfigError, perr.KindOf(err))
}

func TestValidateRejectsOutOfRangeIoUMin(t *testing.T) {
	c := validContext()
	c.Params.IoUMin = 1.5
	assert.Error(t, c.Validate(feature.Default))
}

func TestValidateRejectsBgOverlapAtOne(t *testing.T) {
	c := validContext()
	c.Params.BgOverlap = 1.0
	assert.Error(t, c.Validate(feature.Default))
}

func TestValidateRejectsUnknownFeatureName(t *testing.T) {
	c := validContext()
	c.Channels.PC.Features = []string{"not_a_feature"}
	assert.Error(t, c.Validate(feature.Default))
}

func TestValidateRejectsWrongSignatureFeature(t *testing.T) {
	c := validContext()
	// intensity_total is a fluorescence feature, not valid on the pc channel.
	c.Channels.PC.Features = []string{"intensity_total"}
	assert.Error(t, c.Validate(feature.Default))
}

func TestValidateAllowsEmptyPCFeatureList(t *testing.T) {
	c := validContext()
	c.Channels.PC.Features = nil
	assert.NoError(t, c.Validate(feature.Default))
}
