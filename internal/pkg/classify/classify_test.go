package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJenksBreaks_SeparatesClusters(t *testing.T) {
	values := []float64{1, 2, 1, 2, 10, 11, 12, 50, 52, 51}
	breaks := JenksBreaks(values, 3)

	assert.Equal(t, []float64{1, 10, 50, 52}, breaks)
}

func TestJenksBreaks_FewValues(t *testing.T) {
	assert.Equal(t, []float64{1, 3}, JenksBreaks([]float64{3, 1, 3}, 5))
	assert.Nil(t, JenksBreaks(nil, 5))
}

func TestJenksBreaks_DoesNotMutateInput(t *testing.T) {
	values := []float64{9, 1, 5, 3, 7, 2}
	_ = JenksBreaks(values, 2)
	assert.Equal(t, []float64{9, 1, 5, 3, 7, 2}, values)
}

func TestJenksBreaks_IncludesExtremes(t *testing.T) {
	values := []float64{4, 8, 15, 16, 23, 42, 7, 9, 30, 31}
	breaks := JenksBreaks(values, 4)
	assert.Equal(t, 4.0, breaks[0])
	assert.Equal(t, 42.0, breaks[len(breaks)-1])
	assert.LessOrEqual(t, len(breaks), 5)
}

func TestJenksBreaks_ClampsClassCount(t *testing.T) {
	values := make([]float64, 200)
	for i := range values {
		values[i] = float64(i)
	}
	breaks := JenksBreaks(values, len(values)-1)
	assert.LessOrEqual(t, len(breaks), MaxClasses+1)
	assert.Equal(t, 0.0, breaks[0])
	assert.Equal(t, 199.0, breaks[len(breaks)-1])
}

func TestValidateClasses(t *testing.T) {
	assert.NoError(t, ValidateClasses(0))
	assert.NoError(t, ValidateClasses(MaxClasses))
	assert.Error(t, ValidateClasses(-1))
	assert.Error(t, ValidateClasses(MaxClasses+1))
	for name, p := range Palettes {
		assert.Len(t, p, MaxClasses, name)
	}
}

func TestClassIndex(t *testing.T) {
	breaks := []float64{1, 10, 50, 52}
	assert.Equal(t, 0, ClassIndex(breaks, 1))
	assert.Equal(t, 0, ClassIndex(breaks, 2))
	assert.Equal(t, 1, ClassIndex(breaks, 10))
	assert.Equal(t, 1, ClassIndex(breaks, 49))
	assert.Equal(t, 2, ClassIndex(breaks, 52))
	assert.Equal(t, 2, ClassIndex(breaks, 99))
	assert.Equal(t, 0, ClassIndex(breaks, -5))
	assert.Equal(t, 0, ClassIndex([]float64{3}, 3))
}

func TestPalette(t *testing.T) {
	assert.Equal(t, "#ffffb2", Palette("heat")[0])
	assert.Equal(t, Palettes[DefaultPalette], Palette("nope"))
	assert.Equal(t, "#08519c", Color(Palette("grey_blue"), 9))
	assert.Equal(t, "", Color(nil, 0))
}
