package validator

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
)

const maxNameLength = 255

const maxBasePrice = 1000000

// booleanTokens is the accepted token set for boolean columns.
var booleanTokens = map[string]bool{
	"TRUE": true, "true": true, "1": true,
	"FALSE": false, "false": false, "0": false,
}

var hexColorPattern = regexp.MustCompile(`^#?(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Lookups is the persistence surface the validator consults. Results reflect
// current stored state; uniqueness is re-asserted at commit time.
type Lookups interface {
	GetCategoryByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Category, error)
	GetVendorByCode(ctx context.Context, tenantID, code string) (*models.Vendor, error)
	VariantSKUExists(ctx context.Context, tenantID, sku string) (bool, error)
}

// Validator applies schema and business rules to parsed rows.
type Validator struct {
	lookups Lookups
	logger  *logrus.Logger
}

func New(lookups Lookups, logger *logrus.Logger) *Validator {
	return &Validator{lookups: lookups, logger: logger}
}

// Validate runs three passes over every row (required fields, type/format/
// range, cross-referential rules) and partitions rows into valid and invalid
// sets. A row with zero errors is valid regardless of warnings. Category
// existence is checked once up front and short-circuits everything else.
func (v *Validator) Validate(ctx context.Context, tenantID string, categoryID uuid.UUID, rows []models.Row) (*models.ValidationReport, error) {
	report := &models.ValidationReport{
		TotalRows: len(rows),
	}

	category, err := v.lookups.GetCategoryByID(ctx, tenantID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("category lookup failed: %w", err)
	}
	if category == nil {
		report.Errors = append(report.Errors, models.ValidationIssue{
			Row:     0,
			Field:   "category_id",
			Kind:    models.IssueKindError,
			Message: fmt.Sprintf("Category %s not found", categoryID),
			Value:   categoryID.String(),
		})
		report.ErrorRows = len(rows)
		return report, nil
	}

	for _, row := range rows {
		issues := v.validateRow(ctx, tenantID, row)

		hasError := false
		hasWarning := false
		for _, issue := range issues {
			if issue.Kind == models.IssueKindError {
				hasError = true
				report.Errors = append(report.Errors, issue)
			} else {
				hasWarning = true
				report.Warnings = append(report.Warnings, issue)
			}
		}

		if hasError {
			report.ErrorRows++
		} else {
			report.ValidRows++
			report.ValidData = append(report.ValidData, row)
		}
		if hasWarning {
			report.WarningRows++
		}
	}

	v.logger.WithFields(logrus.Fields{
		"component":  "validator",
		"total_rows": report.TotalRows,
		"valid_rows": report.ValidRows,
		"error_rows": report.ErrorRows,
	}).Info("Validation completed")

	return report, nil
}

func (v *Validator) validateRow(ctx context.Context, tenantID string, row models.Row) []models.ValidationIssue {
	var issues []models.ValidationIssue
	issues = append(issues, checkRequiredFields(row)...)
	issues = append(issues, checkFieldFormats(row)...)
	issues = append(issues, v.checkBusinessRules(ctx, tenantID, row)...)
	return issues
}

// checkRequiredFields flags blank values in mandatory columns.
func checkRequiredFields(row models.Row) []models.ValidationIssue {
	var issues []models.ValidationIssue

	required := []struct {
		field   string
		message string
	}{
		{models.ColumnName, "Product name is required"},
		{models.ColumnBasePrice, "Base price is required"},
		{models.ColumnVariantQuantity, "Variant quantity is required"},
		{models.ColumnImageURLs, "At least one image URL is required"},
	}

	for _, r := range required {
		if row.Get(r.field) == "" {
			issues = append(issues, models.ValidationIssue{
				Row:     row.Index,
				Field:   r.field,
				Kind:    models.IssueKindError,
				Message: r.message,
			})
		}
	}

	return issues
}

// checkFieldFormats validates types, formats and ranges of populated fields.
func checkFieldFormats(row models.Row) []models.ValidationIssue {
	var issues []models.ValidationIssue

	addError := func(field, message, value string) {
		issues = append(issues, models.ValidationIssue{Row: row.Index, Field: field, Kind: models.IssueKindError, Message: message, Value: value})
	}
	addWarning := func(field, message, value string) {
		issues = append(issues, models.ValidationIssue{Row: row.Index, Field: field, Kind: models.IssueKindWarning, Message: message, Value: value})
	}

	if name := row.Get(models.ColumnName); utf8.RuneCountInString(name) > maxNameLength {
		addError(models.ColumnName, fmt.Sprintf("Product name exceeds %d characters", maxNameLength), name)
	}

	if raw := row.Get(models.ColumnBasePrice); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil:
			addError(models.ColumnBasePrice, "Base price must be a valid number", raw)
		case price <= 0:
			addError(models.ColumnBasePrice, "Base price must be greater than 0", raw)
		case price >= maxBasePrice:
			addError(models.ColumnBasePrice, fmt.Sprintf("Base price must be below %d", maxBasePrice), raw)
		}
	}

	for _, field := range []string{models.ColumnIsFeatured, models.ColumnVariantInStock} {
		if raw := row.Get(field); raw != "" {
			if _, ok := booleanTokens[raw]; !ok {
				addError(field, "Value must be one of TRUE/FALSE/true/false/1/0", raw)
			}
		}
	}

	if raw := row.Get(models.ColumnVariantPriceAdjustment); raw != "" {
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			addError(models.ColumnVariantPriceAdjustment, "Price adjustment must be a valid number", raw)
		}
	}

	if raw := row.Get(models.ColumnVariantQuantity); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 0 {
			addError(models.ColumnVariantQuantity, "Quantity must be a non-negative integer", raw)
		}
	}

	if raw := row.Get(models.ColumnImageURLs); raw != "" {
		urls := splitAndTrim(raw)
		if len(urls) == 0 {
			addError(models.ColumnImageURLs, "At least one image URL is required", raw)
		}
		for _, u := range urls {
			if !looksLikeURL(u) {
				addWarning(models.ColumnImageURLs, "Image URL does not look like a valid URL", u)
			}
		}
	}

	if raw := row.Get(models.ColumnVariantColorCode); raw != "" {
		if !hexColorPattern.MatchString(raw) {
			addWarning(models.ColumnVariantColorCode, "Color code should be a 3- or 6-digit hex value", raw)
		}
	}

	return issues
}

// checkBusinessRules applies lookups against current persisted state. These
// checks are advisory; commit re-asserts uniqueness inside the transaction.
func (v *Validator) checkBusinessRules(ctx context.Context, tenantID string, row models.Row) []models.ValidationIssue {
	var issues []models.ValidationIssue

	if code := row.Get(models.ColumnVendorCode); code != "" {
		vendor, err := v.lookups.GetVendorByCode(ctx, tenantID, code)
		if err != nil {
			v.logger.WithField("component", "validator").WithError(err).Warn("Vendor lookup failed")
		} else if vendor == nil {
			issues = append(issues, models.ValidationIssue{
				Row: row.Index, Field: models.ColumnVendorCode, Kind: models.IssueKindError,
				Message: fmt.Sprintf("Vendor with code '%s' not found", code), Value: code,
			})
		}
	}

	if sku := row.Get(models.ColumnVariantSKU); sku != "" {
		exists, err := v.lookups.VariantSKUExists(ctx, tenantID, sku)
		if err != nil {
			v.logger.WithField("component", "validator").WithError(err).Warn("SKU lookup failed")
		} else if exists {
			issues = append(issues, models.ValidationIssue{
				Row: row.Index, Field: models.ColumnVariantSKU, Kind: models.IssueKindError,
				Message: fmt.Sprintf("SKU '%s' already exists", sku), Value: sku,
			})
		}
	}

	if row.Get(models.ColumnVariantSize) == "" && hasOtherVariantFields(row) {
		issues = append(issues, models.ValidationIssue{
			Row: row.Index, Field: models.ColumnVariantSize, Kind: models.IssueKindWarning,
			Message: "No size given; a single Default variant will be created",
		})
	}

	return issues
}

func hasOtherVariantFields(row models.Row) bool {
	for _, field := range []string{
		models.ColumnVariantSKU,
		models.ColumnVariantColorCode,
		models.ColumnVariantPriceAdjustment,
		models.ColumnVariantInStock,
	} {
		if row.Get(field) != "" {
			return true
		}
	}
	return false
}

func looksLikeURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseBool converts a boolean token to its value; blank returns the given
// default. Invalid tokens are caught during validation.
func ParseBool(raw string, def bool) bool {
	if raw == "" {
		return def
	}
	if v, ok := booleanTokens[raw]; ok {
		return v
	}
	return def
}

// SplitList is the shared comma-splitting rule for multi-value columns.
func SplitList(raw string) []string {
	return splitAndTrim(raw)
}
