// Package dataset holds the insurance records table and the services that
// read it: tolerance-window matching and chart aggregates.
package dataset

import (
	"fmt"
	"strings"
)

// Categorical values as stored in insurance.csv.
const (
	SexMale   = "male"
	SexFemale = "female"

	SmokerYes = "yes"
	SmokerNo  = "no"

	RegionSouthwest = "southwest"
	RegionSoutheast = "southeast"
	RegionNorthwest = "northwest"
	RegionNortheast = "northeast"
)

var (
	// Sexes lists the valid values of Record.Sex.
	Sexes = []string{SexMale, SexFemale}
	// SmokerStatuses lists the valid values of Record.Smoker.
	SmokerStatuses = []string{SmokerYes, SmokerNo}
	// Regions lists the valid values of Record.Region.
	Regions = []string{RegionSouthwest, RegionSoutheast, RegionNorthwest, RegionNortheast}
)

// Record is one row of the insurance dataset.
//
// Field order is the column order of the persisted file.
type Record struct {
	Age      int     `json:"age" jsonschema:"minimum=0,description=Age of the primary beneficiary"`
	Sex      string  `json:"sex" jsonschema:"enum=male,enum=female"`
	BMI      float64 `json:"bmi" jsonschema:"exclusiveMinimum=0,description=Body mass index"`
	Children int     `json:"children" jsonschema:"minimum=0,description=Number of dependents"`
	Smoker   string  `json:"smoker" jsonschema:"enum=yes,enum=no"`
	Region   string  `json:"region" jsonschema:"enum=southwest,enum=southeast,enum=northwest,enum=northeast"`
	Charges  float64 `json:"charges" jsonschema:"exclusiveMinimum=0,description=Individual medical costs billed by health insurance"`
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	return fmt.Sprintf("age=%d sex=%s bmi=%g children=%d smoker=%s region=%s charges=%g",
		r.Age, r.Sex, r.BMI, r.Children, r.Smoker, r.Region, r.Charges)
}

// Validate checks categorical fields and, when strict, numeric ranges.
//
// Categorical values are compared case-insensitively. Without strict, negative
// ages or children and non-positive charges are accepted.
func (r *Record) Validate(strict bool) error {
	if !oneOf(r.Sex, Sexes) {
		return &FieldError{Field: "sex", Value: r.Sex, Allowed: Sexes}
	}
	if !oneOf(r.Smoker, SmokerStatuses) {
		return &FieldError{Field: "smoker", Value: r.Smoker, Allowed: SmokerStatuses}
	}
	if !oneOf(r.Region, Regions) {
		return &FieldError{Field: "region", Value: r.Region, Allowed: Regions}
	}
	if !strict {
		return nil
	}
	if r.Age < 0 {
		return &FieldError{Field: "age", Value: r.Age}
	}
	if r.BMI <= 0 {
		return &FieldError{Field: "bmi", Value: r.BMI}
	}
	if r.Children < 0 {
		return &FieldError{Field: "children", Value: r.Children}
	}
	if r.Charges <= 0 {
		return &FieldError{Field: "charges", Value: r.Charges}
	}
	return nil
}

// Query is a partial Record used to find comparable records.
type Query struct {
	Age      int
	BMI      float64
	Sex      string
	Children int
	Smoker   string
	Region   string
}

// Tolerance is the inclusive window applied to Age and BMI when matching.
const Tolerance = 10

// Matches reports whether r falls inside the tolerance window of q.
func (q *Query) Matches(r *Record) bool {
	return withinInt(r.Age, q.Age, Tolerance) &&
		r.BMI >= q.BMI-Tolerance && r.BMI <= q.BMI+Tolerance &&
		r.Children == q.Children &&
		strings.EqualFold(r.Sex, q.Sex) &&
		strings.EqualFold(r.Smoker, q.Smoker) &&
		strings.EqualFold(r.Region, q.Region)
}

// withinInt reports whether |a-b| <= tol without overflowing at the int limits.
func withinInt(a, b, tol int) bool {
	if a < b {
		a, b = b, a
	}
	return uint(a)-uint(b) <= uint(tol) //nolint:gosec // G115: the difference of a >= b always fits in uint.
}

// FieldError reports an out-of-domain record field.
type FieldError struct {
	Field   string
	Value   any
	Allowed []string
}

func (e *FieldError) Error() string {
	if len(e.Allowed) != 0 {
		return fmt.Sprintf("invalid %s %q: must be one of %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
	}
	return fmt.Sprintf("invalid %s %v: out of range", e.Field, e.Value)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return true
		}
	}
	return false
}
