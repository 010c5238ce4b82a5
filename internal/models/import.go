package models

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
	ImportFormatXLS  ImportFormat = "xls"
)

// IssueKind distinguishes blocking errors from advisory warnings.
type IssueKind string

const (
	IssueKindError   IssueKind = "ERROR"
	IssueKindWarning IssueKind = "WARNING"
)

// ValidationIssue is one problem found in one row during validation.
// Row is the 1-based data row number shown to the user.
type ValidationIssue struct {
	Row     int       `json:"row"`
	Field   string    `json:"field"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Value   string    `json:"value,omitempty"`
}

// ValidationReport aggregates the outcome of validating one upload. Rows with
// at least one error are excluded from ValidData; warning-only rows proceed.
type ValidationReport struct {
	SessionID   string            `json:"sessionId"`
	TotalRows   int               `json:"totalRows"`
	ValidRows   int               `json:"validRows"`
	ErrorRows   int               `json:"errorRows"`
	WarningRows int               `json:"warningRows"`
	Errors      []ValidationIssue `json:"errors,omitempty"`
	Warnings    []ValidationIssue `json:"warnings,omitempty"`
	ValidData   []Row             `json:"-"`
}

// ProcessRequest triggers processing of a validated session.
type ProcessRequest struct {
	ProceedWithValidOnly bool `json:"proceedWithValidOnly"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, boolean
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: ColumnName, Description: "Product name (max 255 chars)", Required: true, Type: "string", Example: "Silk Saree"},
		{Name: ColumnDescription, Description: "Product description", Required: false, Type: "string", Example: "Handwoven silk saree"},
		{Name: ColumnBasePrice, Description: "Base price, greater than 0 and below 1,000,000", Required: true, Type: "number", Example: "1499.00"},
		{Name: ColumnIsFeatured, Description: "Featured flag (TRUE/FALSE/1/0)", Required: false, Type: "boolean", Example: "FALSE"},
		{Name: ColumnVendorCode, Description: "Vendor code - must match an existing vendor", Required: false, Type: "string", Example: "VND-042"},
		{Name: ColumnOriginalURL, Description: "Source listing URL", Required: false, Type: "string", Example: ""},
		{Name: ColumnMetaTitle, Description: "SEO title", Required: false, Type: "string", Example: ""},
		{Name: ColumnMetaDescription, Description: "SEO description", Required: false, Type: "string", Example: ""},
		{Name: ColumnVariantSize, Description: "Comma-separated sizes; blank creates a single Default variant", Required: false, Type: "string", Example: "S,M,L"},
		{Name: ColumnVariantSKU, Description: "SKU for the first variant; generated when blank", Required: false, Type: "string", Example: "SAR-1042"},
		{Name: ColumnVariantColorCode, Description: "3- or 6-digit hex color", Required: false, Type: "string", Example: "B03060"},
		{Name: ColumnVariantPriceAdjustment, Description: "Signed price delta applied per variant", Required: false, Type: "number", Example: "0"},
		{Name: ColumnVariantQuantity, Description: "Stock quantity (non-negative integer)", Required: true, Type: "number", Example: "25"},
		{Name: ColumnVariantInStock, Description: "In-stock flag (TRUE/FALSE/1/0)", Required: false, Type: "boolean", Example: "TRUE"},
		{Name: ColumnImageURLs, Description: "Comma-separated image URLs, at least one", Required: true, Type: "string", Example: "https://cdn.example.com/saree-1.jpg"},
		{Name: ColumnImageAltTexts, Description: "Comma-separated alt texts, positional with image_urls", Required: false, Type: "string", Example: "Front view"},
		{Name: AttributeColumnPrefix + "fabric", Description: "Any attribute_* column becomes a product attribute", Required: false, Type: "string", Example: "Silk"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}
