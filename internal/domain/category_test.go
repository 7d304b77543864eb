package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		pvi, sii float64
		expected Category
	}{
		{"high pvi low sii", 0.9, 0.1, CategoryLatentRisk},
		{"high pvi high sii", 0.9, 0.9, CategoryKnownDanger},
		{"low pvi high sii", 0.1, 0.9, CategoryObservationNeeded},
		{"low pvi low sii", 0.1, 0.1, CategorySafe},
		{"at threshold counts as high", 0.5, 0.5, CategoryKnownDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.pvi, tt.sii, 0.5, 0.5))
		})
	}
}

func TestCategory_Label(t *testing.T) {
	assert.Equal(t, "잠재적 위험", CategoryLatentRisk.Label())
	assert.Equal(t, "알려진 위험", CategoryKnownDanger.Label())
	assert.Equal(t, "관찰 필요", CategoryObservationNeeded.Label())
	assert.Equal(t, "안전", CategorySafe.Label())
	assert.Equal(t, "#FF0000", CategoryLatentRisk.Color())
	assert.Equal(t, "#808080", Category("other").Color())
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestThresholdPolicy_Validate(t *testing.T) {
	ok := 0.4
	tooHigh := 1.2
	negative := -0.1

	assert.NoError(t, ThresholdPolicy{}.Validate())
	assert.NoError(t, ThresholdPolicy{PVI: &ok, SII: &ok}.Validate())
	assert.Error(t, ThresholdPolicy{PVI: &tooHigh}.Validate())
	assert.Error(t, ThresholdPolicy{SII: &negative}.Validate())
}
