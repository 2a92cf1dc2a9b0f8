package model

import "errors"

var ErrRowShape = errors.New("row mixes dimension and item fields")

// Row is one flattened record extracted from an evaluation report.
// Nullable columns use pointers so null survives the JSON round trip.
// A row is either a dimension row (item fields all null) or an item row
// (item_code set, dimension_title/dimension_mean null).
type Row struct {
	PDF             string   `json:"pdf"`
	DimensionNumber *int     `json:"dimension_number"`
	DimensionTitle  *string  `json:"dimension_title"`
	DimensionMean   *float64 `json:"dimension_mean"`
	ItemCode        *string  `json:"item_code"`
	ItemText        *string  `json:"item_text"`
	ItemScore       *float64 `json:"item_score"`
}

// IsDimension reports whether the row carries section-level data only.
func (r *Row) IsDimension() bool {
	return r.ItemCode == nil && r.ItemText == nil && r.ItemScore == nil
}

// Validate enforces the two allowed row shapes.
func (r *Row) Validate() error {
	if r.IsDimension() {
		return nil
	}
	if r.ItemCode == nil {
		return ErrRowShape
	}
	if r.DimensionTitle != nil || r.DimensionMean != nil {
		return ErrRowShape
	}
	return nil
}

// Normalize clamps out-of-range scores to null. Scores live in [0,5];
// anything else is model noise, not data.
func (r *Row) Normalize() {
	if r.DimensionMean != nil && (*r.DimensionMean < 0 || *r.DimensionMean > 5) {
		r.DimensionMean = nil
	}
	if r.ItemScore != nil && (*r.ItemScore < 0 || *r.ItemScore > 5) {
		r.ItemScore = nil
	}
}
