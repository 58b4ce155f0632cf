package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitProfile_Clamp(t *testing.T) {
	t.Parallel()
	p := LimitProfile{Default: 100, Max: 1000}

	assert.Equal(t, 100, p.Clamp(0), "zero means default")
	assert.Equal(t, 100, p.Clamp(-5), "negative means default")
	assert.Equal(t, 1, p.Clamp(1))
	assert.Equal(t, 500, p.Clamp(500))
	assert.Equal(t, 1000, p.Clamp(1000))
	assert.Equal(t, 1000, p.Clamp(999999), "requests above the ceiling are clamped")
}

func TestDefaultProfiles(t *testing.T) {
	t.Parallel()
	assert.Less(t, DefaultPreviewLimits.Max, DefaultAdHocLimits.Default,
		"previews stay well under the ad-hoc profile")
	assert.LessOrEqual(t, DefaultPreviewLimits.Default, DefaultPreviewLimits.Max)
	assert.LessOrEqual(t, DefaultAdHocLimits.Default, DefaultAdHocLimits.Max)
}

func TestQuoteIdentifier(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `"users"`, QuoteIdentifier("users"))
	assert.Equal(t, `"weird""name"`, QuoteIdentifier(`weird"name`))
	assert.Equal(t, `"a;DROP TABLE b"`, QuoteIdentifier("a;DROP TABLE b"))
}
