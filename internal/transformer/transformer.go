package transformer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
	"ingestion-service/internal/validator"
)

// DefaultVariantSize is used when a row supplies no sizes.
const DefaultVariantSize = "Default"

// Catalog resolves vendors and the shared attribute dictionary.
type Catalog interface {
	GetVendorByCode(ctx context.Context, tenantID, code string) (*models.Vendor, error)
	GetOrCreateAttribute(ctx context.Context, tenantID, name string) (*models.AttributeDefinition, error)
}

// IDGenerator produces unique slugs and SKUs against current storage state.
type IDGenerator interface {
	Slugify(ctx context.Context, tenantID, name string) (string, error)
	SKUFor(ctx context.Context, tenantID, categoryCode string, rowIndex int) (string, error)
}

// Transformer converts validated rows into product graphs ready for commit.
type Transformer struct {
	catalog Catalog
	ids     IDGenerator
	logger  *logrus.Logger
}

func New(catalog Catalog, ids IDGenerator, logger *logrus.Logger) *Transformer {
	return &Transformer{catalog: catalog, ids: ids, logger: logger}
}

// Transform builds a full product graph (product, variants, images,
// attribute values) from one valid row. Deterministic apart from identifier
// generation and dictionary lookups; row ordering matters because image
// assignment and SKU fallback depend on it.
func (t *Transformer) Transform(ctx context.Context, tenantID string, category *models.Category, row models.Row) (*models.Product, error) {
	name := row.Get(models.ColumnName)

	slug, err := t.ids.Slugify(ctx, tenantID, name)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", row.Index, err)
	}

	product := &models.Product{
		TenantID:        tenantID,
		CategoryID:      category.ID,
		Name:            name,
		Slug:            slug,
		Description:     optional(row.Get(models.ColumnDescription)),
		BasePrice:       row.Get(models.ColumnBasePrice),
		IsFeatured:      validator.ParseBool(row.Get(models.ColumnIsFeatured), false),
		OriginalURL:     optional(row.Get(models.ColumnOriginalURL)),
		MetaTitle:       optional(row.Get(models.ColumnMetaTitle)),
		MetaDescription: optional(row.Get(models.ColumnMetaDescription)),
		Status:          models.ProductStatusActive,
	}

	if code := row.Get(models.ColumnVendorCode); code != "" {
		vendor, err := t.catalog.GetVendorByCode(ctx, tenantID, code)
		if err != nil {
			return nil, fmt.Errorf("row %d: vendor lookup failed: %w", row.Index, err)
		}
		if vendor != nil {
			product.VendorID = &vendor.ID
		}
	}

	if err := t.buildVariants(ctx, tenantID, category, row, product); err != nil {
		return nil, err
	}
	t.buildImages(row, product)
	if err := t.buildAttributes(ctx, tenantID, row, product); err != nil {
		return nil, err
	}

	return product, nil
}

// buildVariants creates one variant per size token. The first variant reuses
// a user-supplied SKU verbatim; all others get generated SKUs.
func (t *Transformer) buildVariants(ctx context.Context, tenantID string, category *models.Category, row models.Row, product *models.Product) error {
	sizes := validator.SplitList(row.Get(models.ColumnVariantSize))
	if len(sizes) == 0 {
		sizes = []string{DefaultVariantSize}
	}

	quantity, _ := strconv.Atoi(row.Get(models.ColumnVariantQuantity))
	inStock := validator.ParseBool(row.Get(models.ColumnVariantInStock), true)
	colorCode := optional(row.Get(models.ColumnVariantColorCode))
	priceAdjustment := row.Get(models.ColumnVariantPriceAdjustment)
	if priceAdjustment == "" {
		priceAdjustment = "0"
	}
	userSKU := row.Get(models.ColumnVariantSKU)

	for i, size := range sizes {
		sku := ""
		if i == 0 && userSKU != "" {
			sku = userSKU
		} else {
			generated, err := t.ids.SKUFor(ctx, tenantID, category.Code, row.Index)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Index, err)
			}
			sku = generated
		}

		product.Variants = append(product.Variants, &models.ProductVariant{
			TenantID:        tenantID,
			Size:            size,
			SKU:             sku,
			ColorCode:       colorCode,
			PriceAdjustment: priceAdjustment,
			Quantity:        quantity,
			InStock:         inStock,
			Position:        i,
		})
	}

	return nil
}

// buildImages distributes images round-robin across variants: images[i] goes
// to variants[i mod M]. Alt texts pair with URLs positionally.
func (t *Transformer) buildImages(row models.Row, product *models.Product) {
	urls := validator.SplitList(row.Get(models.ColumnImageURLs))
	altTexts := validator.SplitList(row.Get(models.ColumnImageAltTexts))
	variantCount := len(product.Variants)

	for i, u := range urls {
		image := &models.ProductImage{
			URL:      u,
			Position: i,
		}
		if i < len(altTexts) {
			image.AltText = optional(altTexts[i])
		}
		if variantCount > 0 {
			idx := i % variantCount
			image.VariantIndex = &idx
		}
		product.Images = append(product.Images, image)
	}
}

// buildAttributes turns attribute_* columns into attribute values, creating
// dictionary entries on first use.
func (t *Transformer) buildAttributes(ctx context.Context, tenantID string, row models.Row, product *models.Product) error {
	for _, cell := range row.AttributeColumns() {
		if cell.Value == "" {
			continue
		}
		def, err := t.catalog.GetOrCreateAttribute(ctx, tenantID, cell.Name)
		if err != nil {
			return fmt.Errorf("row %d: attribute %q: %w", row.Index, cell.Name, err)
		}
		product.AttributeValues = append(product.AttributeValues, &models.ProductAttributeValue{
			AttributeID: def.ID,
			Value:       cell.Value,
		})
	}
	return nil
}

func optional(raw string) *string {
	if raw == "" {
		return nil
	}
	return &raw
}
