package validation_test

import (
	"testing"
	"time"

	"github.com/duskdb/duskdb/pkg/lsm"
	"github.com/duskdb/duskdb/pkg/validation"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"required,min=1,max=10"`
}

func TestStructRejectsMissingRequiredField(t *testing.T) {
	err := validation.Struct(sample{Count: 5})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Name")
}

func TestStructRejectsOutOfRangeValue(t *testing.T) {
	err := validation.Struct(sample{Name: "x", Count: 100})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Count")
}

func TestStructAcceptsValidValue(t *testing.T) {
	require.NoError(t, validation.Struct(sample{Name: "x", Count: 5}))
}

func TestLSMOptionsValidateRejectsMissingDataDir(t *testing.T) {
	opts := lsm.DefaultOptions("")
	require.Error(t, opts.Validate())
}

func TestLSMOptionsValidateRejectsTotalBelowPerMemLimit(t *testing.T) {
	opts := lsm.DefaultOptions(t.TempDir())
	opts.TotalMemLimit = opts.PerMemLimit - 1
	require.Error(t, opts.Validate())
}

func TestLSMOptionsValidateAcceptsDefaults(t *testing.T) {
	opts := lsm.DefaultOptions(t.TempDir())
	require.NoError(t, opts.Validate())
}

func TestLSMOptionsValidateRejectsInvalidBloomRate(t *testing.T) {
	opts := lsm.DefaultOptions(t.TempDir())
	opts.BloomFalsePositiveRate = 1.5
	require.Error(t, opts.Validate())
}

func TestConfigValidatorCollectsMultipleErrors(t *testing.T) {
	cv := validation.NewConfigValidator("test.Config")
	cv.Required("Name", "").
		RequiredInt("Count", 0).
		MinInt("Limit", 3, 10)

	require.True(t, cv.HasErrors())
	require.Len(t, cv.Errors(), 3)
}

func TestConfigValidatorPassesWhenAllValid(t *testing.T) {
	cv := validation.NewConfigValidator("test.Config")
	cv.Required("Name", "set").
		Positive("Count", 5).
		RangeDuration("Timeout", 2*time.Second, time.Second, 10*time.Second)
	require.NoError(t, cv.Validate())
}

func TestConfigValidatorWhenConditional(t *testing.T) {
	cv := validation.NewConfigValidator("test.Config")
	cv.When(true, func(c *validation.ConfigValidator) {
		c.Required("Field", "")
	})
	require.True(t, cv.HasErrors())
}

func TestConfigValidatorOneOf(t *testing.T) {
	cv := validation.NewConfigValidator("test.Config")
	cv.OneOf("Mode", "bogus", []string{"a", "b", "c"})
	require.True(t, cv.HasErrors())

	cv2 := validation.NewConfigValidator("test.Config")
	cv2.OneOf("Mode", "b", []string{"a", "b", "c"})
	require.False(t, cv2.HasErrors())
}

func TestDefaultOrHelpers(t *testing.T) {
	require.Equal(t, 5, validation.DefaultOrInt(0, 5))
	require.Equal(t, 3, validation.DefaultOrInt(3, 5))
	require.Equal(t, time.Second, validation.DefaultOrDuration(0, time.Second))
}

func TestClampHelpers(t *testing.T) {
	require.Equal(t, 1, validation.ClampInt(-5, 1, 10))
	require.Equal(t, 10, validation.ClampInt(50, 1, 10))
	require.Equal(t, 5, validation.ClampInt(5, 1, 10))
}
