package models

import "strings"

// Row is one spreadsheet data line, pre-validation. Index is the 1-based data
// row ordinal (the first row after the header is 1), matching the row numbers
// surfaced to users in validation issues. Cells maps normalized column name to
// the raw trimmed cell text; missing cells are present as empty strings so
// downstream code has a uniform representation for "missing".
type Row struct {
	Index   int               `json:"index"`
	Columns []string          `json:"columns"`
	Cells   map[string]string `json:"cells"`
}

// Get returns the raw cell value for a column, or "" when absent.
func (r Row) Get(column string) string {
	return r.Cells[column]
}

// Has reports whether the column holds a non-blank value.
func (r Row) Has(column string) bool {
	return strings.TrimSpace(r.Cells[column]) != ""
}

// AttributeColumns returns the dynamic attribute_* columns in header order,
// mapped to their non-blank values. The attribute name is the column suffix
// with underscores replaced by spaces ("attribute_fabric_type" -> "fabric type").
func (r Row) AttributeColumns() []AttributeCell {
	var attrs []AttributeCell
	for _, col := range r.Columns {
		if !strings.HasPrefix(col, AttributeColumnPrefix) {
			continue
		}
		value := strings.TrimSpace(r.Cells[col])
		if value == "" {
			continue
		}
		name := strings.TrimPrefix(col, AttributeColumnPrefix)
		name = strings.ReplaceAll(name, "_", " ")
		attrs = append(attrs, AttributeCell{Name: name, Value: value})
	}
	return attrs
}

// AttributeCell is one dynamic attribute column resolved from a row.
type AttributeCell struct {
	Name  string
	Value string
}

// AttributeColumnPrefix marks the dynamic attribute columns in an upload.
const AttributeColumnPrefix = "attribute_"

// Well-known ingestion column names.
const (
	ColumnName                   = "name"
	ColumnDescription            = "description"
	ColumnBasePrice              = "base_price"
	ColumnIsFeatured             = "is_featured"
	ColumnVendorCode             = "vendor_code"
	ColumnOriginalURL            = "original_url"
	ColumnMetaTitle              = "meta_title"
	ColumnMetaDescription        = "meta_description"
	ColumnVariantSize            = "variant_size"
	ColumnVariantSKU             = "variant_sku"
	ColumnVariantColorCode       = "variant_color_code"
	ColumnVariantPriceAdjustment = "variant_price_adjustment"
	ColumnVariantQuantity        = "variant_quantity"
	ColumnVariantInStock         = "variant_in_stock"
	ColumnImageURLs              = "image_urls"
	ColumnImageAltTexts          = "image_alt_texts"
)
