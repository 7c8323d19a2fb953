// Defines response payloads.

package dto

import "time"

// Response messages. Clients match on them, do not reword.
const (
	MessageMatched  = "Matching data found."
	MessageFallback = "No matching data found. Returning a random charge."
	MessageAdded    = "Data added successfully!"
)

// Record is one dataset row.
type Record struct {
	Age      int     `json:"age"`
	Sex      string  `json:"sex"`
	BMI      float64 `json:"bmi"`
	Children int     `json:"children"`
	Smoker   string  `json:"smoker"`
	Region   string  `json:"region"`
	Charges  float64 `json:"charges"`
}

// --- Match ---

// MatchResponse carries either AverageCharges and Matches, or RandomCharge.
//
// RandomCharge is a random value in the dataset's charge range, not an
// estimate.
type MatchResponse struct {
	Message        string   `json:"message"`
	AverageCharges *float64 `json:"average_charges,omitempty"`
	Matches        []Record `json:"matches,omitempty"`
	RandomCharge   *float64 `json:"random_charge,omitempty"`
}

// --- Records ---

// AddRecordResponse echoes the stored record.
type AddRecordResponse struct {
	Message string `json:"message"`
	Data    Record `json:"data"`
}

// ListRecordsResponse is a page of records.
type ListRecordsResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// --- Stats ---

// Summary is a five-number summary plus the mean.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// Correlation is a symmetric correlation matrix over Columns.
type Correlation struct {
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

// StatsResponse holds one aggregate per dashboard chart.
//
// Integer map keys (number of children) are encoded as JSON object keys.
type StatsResponse struct {
	Records                    int                           `json:"records"`
	BySex                      map[string]int                `json:"by_sex"`
	BySmoker                   map[string]int                `json:"by_smoker"`
	ChildrenBySex              map[int]map[string]int        `json:"children_by_sex"`
	BMIBySmoker                map[string]Summary            `json:"bmi_by_smoker"`
	ChargesBySmokerSex         map[string]map[string]float64 `json:"charges_by_smoker_sex"`
	AvgChargesByRegion         map[string]float64            `json:"avg_charges_by_region"`
	SmokersByRegion            map[string]map[string]int     `json:"smokers_by_region"`
	ChildrenByRegion           map[string]map[int]int        `json:"children_by_region"`
	ChargesBySmoker            map[string]Summary            `json:"charges_by_smoker"`
	AvgChargesByRegionChildren map[string]map[int]float64    `json:"avg_charges_by_region_children"`
	Correlation                Correlation                   `json:"correlation"`
}

// --- History ---

// Commit is one entry of the dataset history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// HistoryResponse lists commits newest first.
type HistoryResponse struct {
	Commits []Commit `json:"commits"`
	// Total is the number of commits touching the dataset.
	Total int `json:"total"`
}

// HistoryRecordsResponse holds the records as of one commit.
type HistoryRecordsResponse struct {
	Hash    string   `json:"hash"`
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

// --- Misc ---

// HealthResponse is the response to a health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Records int    `json:"records"`
}
