// Computes the aggregates behind the dashboard charts.

package dataset

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"gonum.org/v1/gonum/stat"
)

// Summary is a five-number summary plus the mean, as drawn by a box plot.
//
// Quartiles interpolate linearly between closest ranks, the default of
// pandas and of plotly box plots.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// Correlation is a symmetric Pearson correlation matrix.
type Correlation struct {
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

// Stats holds one aggregate per dashboard chart.
//
// Categorical keys are lower-cased. Averages are rounded to cents and
// correlations to 4 decimals.
type Stats struct {
	Records int `json:"records"`

	BySex    map[string]int `json:"by_sex"`
	BySmoker map[string]int `json:"by_smoker"`
	// ChildrenBySex counts records per number of children, then sex.
	ChildrenBySex map[int]map[string]int `json:"children_by_sex"`
	// BMIBySmoker summarizes BMI per smoker status.
	BMIBySmoker map[string]Summary `json:"bmi_by_smoker"`
	// ChargesBySmokerSex sums charges per smoker status, then sex.
	ChargesBySmokerSex map[string]map[string]float64 `json:"charges_by_smoker_sex"`
	// AvgChargesByRegion averages charges per region.
	AvgChargesByRegion map[string]float64 `json:"avg_charges_by_region"`
	// SmokersByRegion counts records per region, then smoker status.
	SmokersByRegion map[string]map[string]int `json:"smokers_by_region"`
	// ChildrenByRegion counts records with 1 to 5 children per region, then
	// number of children.
	ChildrenByRegion map[string]map[int]int `json:"children_by_region"`
	// ChargesBySmoker summarizes charges per smoker status.
	ChargesBySmoker map[string]Summary `json:"charges_by_smoker"`
	// AvgChargesByRegionChildren averages charges per region, then number of
	// children.
	AvgChargesByRegionChildren map[string]map[int]float64 `json:"avg_charges_by_region_children"`
	// Correlation covers the numeric columns.
	Correlation Correlation `json:"correlation"`
}

// Stats computes the chart aggregates over the current snapshot.
func (s *Store) Stats() (*Stats, error) {
	var st *Stats
	var err error
	s.view(func(rows []Record, _ *index) {
		st, err = ComputeStats(rows)
	})
	return st, err
}

// ComputeStats computes the chart aggregates over rows.
//
// It fails on zero rows and when an aggregate is not finite, which happens
// when charges sum beyond the float64 range.
func ComputeStats(rows []Record) (*Stats, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	st := &Stats{
		Records:                    len(rows),
		BySex:                      map[string]int{},
		BySmoker:                   map[string]int{},
		ChildrenBySex:              map[int]map[string]int{},
		BMIBySmoker:                map[string]Summary{},
		ChargesBySmokerSex:         map[string]map[string]float64{},
		AvgChargesByRegion:         map[string]float64{},
		SmokersByRegion:            map[string]map[string]int{},
		ChildrenByRegion:           map[string]map[int]int{},
		ChargesBySmoker:            map[string]Summary{},
		AvgChargesByRegionChildren: map[string]map[int]float64{},
	}
	bmiBySmoker := map[string][]float64{}
	chargesBySmoker := map[string][]float64{}
	chargesByRegion := map[string][]float64{}
	chargesByRegionChildren := map[string]map[int][]float64{}

	for i := range rows {
		r := &rows[i]
		sex := strings.ToLower(r.Sex)
		smoker := strings.ToLower(r.Smoker)
		region := strings.ToLower(r.Region)

		st.BySex[sex]++
		st.BySmoker[smoker]++
		inc(st.ChildrenBySex, r.Children, sex, 1)
		bmiBySmoker[smoker] = append(bmiBySmoker[smoker], r.BMI)
		inc(st.ChargesBySmokerSex, smoker, sex, r.Charges)
		chargesByRegion[region] = append(chargesByRegion[region], r.Charges)
		inc(st.SmokersByRegion, region, smoker, 1)
		if r.Children >= 1 && r.Children <= 5 {
			inc(st.ChildrenByRegion, region, r.Children, 1)
		}
		chargesBySmoker[smoker] = append(chargesBySmoker[smoker], r.Charges)
		if chargesByRegionChildren[region] == nil {
			chargesByRegionChildren[region] = map[int][]float64{}
		}
		chargesByRegionChildren[region][r.Children] = append(chargesByRegionChildren[region][r.Children], r.Charges)
	}

	for k, sums := range st.ChargesBySmokerSex {
		for sex, v := range sums {
			st.ChargesBySmokerSex[k][sex] = Round2(v)
		}
	}
	for k, v := range bmiBySmoker {
		st.BMIBySmoker[k] = summarize(v)
	}
	for k, v := range chargesBySmoker {
		st.ChargesBySmoker[k] = summarize(v)
	}
	for k, v := range chargesByRegion {
		st.AvgChargesByRegion[k] = mean2(v)
	}
	for region, byChildren := range chargesByRegionChildren {
		out := make(map[int]float64, len(byChildren))
		for c, v := range byChildren {
			out[c] = mean2(v)
		}
		st.AvgChargesByRegionChildren[region] = out
	}
	st.Correlation = correlate(rows)
	if err := st.checkFinite(); err != nil {
		return nil, err
	}
	return st, nil
}

// checkFinite fails on the first NaN or infinite aggregate; JSON cannot
// encode them.
func (st *Stats) checkFinite() error {
	check := func(name string, v float64) error {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("%s is %v: %w", name, v, errNotFinite)
		}
		return nil
	}
	summaries := func(name string, m map[string]Summary) error {
		for k, s := range m {
			for _, v := range [...]float64{s.Min, s.Q1, s.Median, s.Q3, s.Max, s.Mean} {
				if err := check(name+"["+k+"]", v); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := summaries("bmi_by_smoker", st.BMIBySmoker); err != nil {
		return err
	}
	if err := summaries("charges_by_smoker", st.ChargesBySmoker); err != nil {
		return err
	}
	for k, sums := range st.ChargesBySmokerSex {
		for sex, v := range sums {
			if err := check("charges_by_smoker_sex["+k+"]["+sex+"]", v); err != nil {
				return err
			}
		}
	}
	for k, v := range st.AvgChargesByRegion {
		if err := check("avg_charges_by_region["+k+"]", v); err != nil {
			return err
		}
	}
	for k, byChildren := range st.AvgChargesByRegionChildren {
		for c, v := range byChildren {
			if err := check(fmt.Sprintf("avg_charges_by_region_children[%s][%d]", k, c), v); err != nil {
				return err
			}
		}
	}
	return nil
}

func inc[K1, K2 comparable, V int | float64](m map[K1]map[K2]V, k1 K1, k2 K2, v V) {
	inner, ok := m[k1]
	if !ok {
		inner = map[K2]V{}
		m[k1] = inner
	}
	inner[k2] += v
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Q1:     Round2(quantile(sorted, 0.25)),
		Median: Round2(quantile(sorted, 0.5)),
		Q3:     Round2(quantile(sorted, 0.75)),
		Max:    sorted[len(sorted)-1],
		Mean:   mean2(sorted),
	}
}

// quantile returns the q-th quantile of sorted, interpolating linearly at
// position q*(n-1).
//
// stat.LinInterp interpolates at position p*n-1 (clamped to the first
// value), so q is remapped to p = (q*(n-1)+1)/n.
func quantile(sorted []float64, q float64) float64 {
	n := float64(len(sorted))
	p := min((q*(n-1)+1)/n, 1)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// correlationColumns are the numeric columns of Record.
var correlationColumns = []string{"age", "bmi", "children", "charges"}

// correlate computes Pearson correlations between the numeric columns.
//
// A column with zero variance correlates 0 with every other column and 1
// with itself. pandas reports NaN there, which JSON cannot carry.
func correlate(rows []Record) Correlation {
	cols := make([][]float64, len(correlationColumns))
	for i := range cols {
		cols[i] = make([]float64, len(rows))
	}
	for i := range rows {
		cols[0][i] = float64(rows[i].Age)
		cols[1][i] = rows[i].BMI
		cols[2][i] = float64(rows[i].Children)
		cols[3][i] = rows[i].Charges
	}
	n := len(cols)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(cols[i], cols[j], nil)
			if math.IsNaN(c) || math.IsInf(c, 0) {
				c = 0
			}
			c = roundTo(c, 4, apd.RoundHalfEven)
			m[i][j] = c
			m[j][i] = c
		}
	}
	return Correlation{Columns: slices.Clone(correlationColumns), Matrix: m}
}
