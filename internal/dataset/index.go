package dataset

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// Indexed categorical fields.
const (
	fieldSex      = "sex"
	fieldSmoker   = "smoker"
	fieldRegion   = "region"
	fieldChildren = "children"
)

// index is an inverted index over the exact-match fields of Record.
//
// Structure: field -> normalized value -> bitmap of row positions. String
// values are lower-cased so lookups are case-insensitive. Caller must hold
// the owning Store's lock.
type index struct {
	inverted map[string]map[string]*roaring.Bitmap
}

func newIndex(rows []Record) *index {
	idx := &index{inverted: make(map[string]map[string]*roaring.Bitmap, 4)}
	for i := range rows {
		idx.add(uint32(i), &rows[i]) //nolint:gosec // G115: row count is far below 2^32.
	}
	return idx
}

func (idx *index) add(pos uint32, r *Record) {
	idx.addValue(fieldSex, strings.ToLower(r.Sex), pos)
	idx.addValue(fieldSmoker, strings.ToLower(r.Smoker), pos)
	idx.addValue(fieldRegion, strings.ToLower(r.Region), pos)
	idx.addValue(fieldChildren, strconv.Itoa(r.Children), pos)
}

func (idx *index) addValue(field, value string, pos uint32) {
	values, ok := idx.inverted[field]
	if !ok {
		values = make(map[string]*roaring.Bitmap)
		idx.inverted[field] = values
	}
	bm, ok := values[value]
	if !ok {
		bm = roaring.New()
		values[value] = bm
	}
	bm.Add(pos)
}

// remove drops the last row; only used to roll back a failed append.
func (idx *index) remove(pos uint32, r *Record) {
	for field, value := range map[string]string{
		fieldSex:      strings.ToLower(r.Sex),
		fieldSmoker:   strings.ToLower(r.Smoker),
		fieldRegion:   strings.ToLower(r.Region),
		fieldChildren: strconv.Itoa(r.Children),
	} {
		if bm := idx.inverted[field][value]; bm != nil {
			bm.Remove(pos)
			if bm.IsEmpty() {
				delete(idx.inverted[field], value)
			}
		}
	}
}

// candidates returns the positions whose categorical fields equal q's.
//
// The numeric tolerance windows are not applied.
func (idx *index) candidates(q *Query) *roaring.Bitmap {
	lookups := [...]struct{ field, value string }{
		{fieldRegion, strings.ToLower(q.Region)},
		{fieldSmoker, strings.ToLower(q.Smoker)},
		{fieldChildren, strconv.Itoa(q.Children)},
		{fieldSex, strings.ToLower(q.Sex)},
	}
	var result *roaring.Bitmap
	for _, l := range lookups {
		bm := idx.inverted[l.field][l.value]
		if bm == nil {
			return roaring.New()
		}
		if result == nil {
			result = bm.Clone()
		} else {
			result.And(bm)
		}
		if result.IsEmpty() {
			return result
		}
	}
	return result
}
