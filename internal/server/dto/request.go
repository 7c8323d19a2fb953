// Defines request payloads and their validation.

package dto

import (
	"slices"
	"strings"
)

// Allowed categorical values. They mirror the dataset's.
var (
	Sexes          = []string{"male", "female"}
	SmokerStatuses = []string{"yes", "no"}
	Regions        = []string{"southwest", "southeast", "northwest", "northeast"}
)

// --- Match ---

// MatchRequest is a query for the average charge of comparable records.
//
// Field names are those of the web form: gender and smoke. Numeric fields are
// pointers so that a missing field can be told apart from 0. Categorical
// values are not checked against the allowed set: an unknown value simply
// matches nothing.
type MatchRequest struct {
	Age      *int     `json:"age"`
	BMI      *float64 `json:"bmi"`
	Gender   string   `json:"gender"`
	Children *int     `json:"children"`
	Smoke    string   `json:"smoke"`
	Region   string   `json:"region"`
}

// Validate validates the match request fields.
func (r *MatchRequest) Validate() error {
	if r.Age == nil {
		return MissingField("age")
	}
	if r.BMI == nil {
		return MissingField("bmi")
	}
	if r.Gender == "" {
		return MissingField("gender")
	}
	if r.Children == nil {
		return MissingField("children")
	}
	if r.Smoke == "" {
		return MissingField("smoke")
	}
	if r.Region == "" {
		return MissingField("region")
	}
	return nil
}

// --- Records ---

// AddRecordRequest is a new record to append to the dataset.
type AddRecordRequest struct {
	Age      *int     `json:"age"`
	Sex      string   `json:"sex"`
	BMI      *float64 `json:"bmi"`
	Children *int     `json:"children"`
	Smoker   string   `json:"smoker"`
	Region   string   `json:"region"`
	Charges  *float64 `json:"charges"`
}

// Validate checks presence of every field and the categorical values.
//
// Numeric ranges are checked by the handler when strict records are enabled.
func (r *AddRecordRequest) Validate() error {
	if r.Age == nil {
		return MissingField("age")
	}
	if r.Sex == "" {
		return MissingField("sex")
	}
	if r.BMI == nil {
		return MissingField("bmi")
	}
	if r.Children == nil {
		return MissingField("children")
	}
	if r.Smoker == "" {
		return MissingField("smoker")
	}
	if r.Region == "" {
		return MissingField("region")
	}
	if r.Charges == nil {
		return MissingField("charges")
	}
	if err := checkEnum("sex", r.Sex, Sexes); err != nil {
		return err
	}
	if err := checkEnum("smoker", r.Smoker, SmokerStatuses); err != nil {
		return err
	}
	return checkEnum("region", r.Region, Regions)
}

// ListRecordsRequest is a request to list records in file order.
type ListRecordsRequest struct {
	// Offset is the number of records to skip.
	Offset int `query:"offset"`
	// Limit is the maximum number of records to return. 0 returns all.
	Limit int `query:"limit"`
}

// Validate validates the list records request fields.
func (r *ListRecordsRequest) Validate() error {
	if r.Offset < 0 {
		return InvalidField("offset", "must be non-negative")
	}
	if r.Limit < 0 {
		return InvalidField("limit", "must be non-negative")
	}
	return nil
}

// --- History ---

// HistoryRequest is a request for the dataset's commit log.
type HistoryRequest struct {
	// Limit is the maximum number of commits to return, newest first. 0
	// returns all.
	Limit int `query:"limit"`
}

// Validate validates the history request fields.
func (r *HistoryRequest) Validate() error {
	if r.Limit < 0 {
		return InvalidField("limit", "must be non-negative")
	}
	return nil
}

// HistoryRecordsRequest is a request for the records as of one commit.
type HistoryRecordsRequest struct {
	// Hash is a full commit hash or HEAD.
	Hash string `path:"hash"`
}

// Validate checks that Hash is HEAD or 40 hexadecimal digits.
func (r *HistoryRecordsRequest) Validate() error {
	if r.Hash == "" {
		return MissingField("hash")
	}
	if r.Hash == "HEAD" {
		return nil
	}
	if len(r.Hash) != 40 || strings.Trim(strings.ToLower(r.Hash), "0123456789abcdef") != "" {
		return InvalidField("hash", "must be HEAD or a 40 digit hexadecimal commit hash")
	}
	return nil
}

// --- Misc ---

// StatsRequest is a request for the chart aggregates.
type StatsRequest struct{}

// Validate is a no-op for StatsRequest.
func (r *StatsRequest) Validate() error {
	return nil
}

// SchemaRequest is a request for the JSON Schema of a record.
type SchemaRequest struct{}

// Validate is a no-op for SchemaRequest.
func (r *SchemaRequest) Validate() error {
	return nil
}

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

func checkEnum(field, value string, allowed []string) error {
	if slices.Contains(allowed, strings.ToLower(value)) {
		return nil
	}
	return InvalidField(field, "must be one of "+strings.Join(allowed, ", ")).
		WithDetail("allowed", allowed)
}
