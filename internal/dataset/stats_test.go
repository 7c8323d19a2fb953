package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	rows := []Record{
		{Age: 20, Sex: "male", BMI: 20, Children: 0, Smoker: "yes", Region: "southwest", Charges: 100},
		{Age: 30, Sex: "Female", BMI: 30, Children: 1, Smoker: "no", Region: "southwest", Charges: 200},
		{Age: 40, Sex: "female", BMI: 40, Children: 1, Smoker: "no", Region: "northeast", Charges: 300},
		{Age: 50, Sex: "male", BMI: 50, Children: 6, Smoker: "no", Region: "northeast", Charges: 400},
	}
	st, err := ComputeStats(rows)
	require.NoError(t, err)

	assert.Equal(t, 4, st.Records)
	assert.Equal(t, map[string]int{"male": 2, "female": 2}, st.BySex)
	assert.Equal(t, map[string]int{"yes": 1, "no": 3}, st.BySmoker)
	assert.Equal(t, map[int]map[string]int{0: {"male": 1}, 1: {"female": 2}, 6: {"male": 1}}, st.ChildrenBySex)
	assert.Equal(t, map[string]map[string]float64{"yes": {"male": 100}, "no": {"female": 500, "male": 400}}, st.ChargesBySmokerSex)
	assert.Equal(t, map[string]float64{"southwest": 150, "northeast": 350}, st.AvgChargesByRegion)
	assert.Equal(t, map[string]map[string]int{"southwest": {"yes": 1, "no": 1}, "northeast": {"no": 2}}, st.SmokersByRegion)
	// Six children is outside the charted 1 to 5 range.
	assert.Equal(t, map[string]map[int]int{"southwest": {1: 1}, "northeast": {1: 1}}, st.ChildrenByRegion)
	assert.Equal(t, map[string]map[int]float64{"southwest": {0: 100, 1: 200}, "northeast": {1: 300, 6: 400}}, st.AvgChargesByRegionChildren)

	assert.Equal(t, Summary{Count: 3, Min: 200, Q1: 250, Median: 300, Q3: 350, Max: 400, Mean: 300}, st.ChargesBySmoker["no"])
	assert.Equal(t, Summary{Count: 1, Min: 20, Q1: 20, Median: 20, Q3: 20, Max: 20, Mean: 20}, st.BMIBySmoker["yes"])

	require.Equal(t, []string{"age", "bmi", "children", "charges"}, st.Correlation.Columns)
	m := st.Correlation.Matrix
	require.Len(t, m, 4)
	for i := range m {
		assert.InDelta(t, 1, m[i][i], 1e-12)
		for j := range m {
			assert.InDelta(t, m[i][j], m[j][i], 1e-12)
		}
	}
	// age, bmi and charges grow in lockstep.
	assert.InDelta(t, 1, m[0][1], 1e-12)
	assert.InDelta(t, 1, m[0][3], 1e-12)
}

func TestComputeStats_ZeroVariance(t *testing.T) {
	rows := []Record{
		{Age: 30, Sex: "male", BMI: 20, Children: 2, Smoker: "no", Region: "southwest", Charges: 100},
		{Age: 30, Sex: "male", BMI: 30, Children: 2, Smoker: "no", Region: "southwest", Charges: 200},
	}
	st, err := ComputeStats(rows)
	require.NoError(t, err)
	m := st.Correlation.Matrix
	assert.Equal(t, 1.0, m[0][0])
	assert.Equal(t, 0.0, m[0][1])
	assert.Equal(t, 0.0, m[2][3])
	assert.InDelta(t, 1, m[1][3], 1e-12)
}

func TestStore_Stats(t *testing.T) {
	s := openSample(t, sampleCSV)
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 10, st.Records)
	assert.Equal(t, 5, st.BySex["male"])
	assert.Equal(t, 5, st.BySex["female"])
	assert.Equal(t, 1, st.BySmoker["yes"])
	assert.InDelta(t, 16884.92, st.ChargesBySmoker["yes"].Mean, 1e-9)
}

func TestComputeStats_Errors(t *testing.T) {
	_, err := ComputeStats(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	// Two charges near the float64 limit overflow their sums.
	rows := []Record{
		{Age: 30, Sex: "male", BMI: 20, Smoker: "no", Region: "southwest", Charges: math.MaxFloat64},
		{Age: 40, Sex: "male", BMI: 30, Smoker: "no", Region: "southwest", Charges: math.MaxFloat64},
	}
	st, err := ComputeStats(rows)
	assert.ErrorIs(t, err, errNotFinite)
	assert.Nil(t, st)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1, quantile(sorted, 0), 1e-12)
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 2.5, quantile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-12)
	assert.InDelta(t, 4, quantile(sorted, 1), 1e-12)

	assert.InDelta(t, 7, quantile([]float64{7}, 0.25), 1e-12)
	// pandas: Series([1, 10, 100]).quantile([.25, .75]) is 5.5 and 55.
	assert.InDelta(t, 5.5, quantile([]float64{1, 10, 100}, 0.25), 1e-9)
	assert.InDelta(t, 55, quantile([]float64{1, 10, 100}, 0.75), 1e-9)
}
