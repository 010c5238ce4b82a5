package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft  ProductStatus = "DRAFT"
	ProductStatusActive ProductStatus = "ACTIVE"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product represents a catalog product committed by the ingestion pipeline.
// Uniqueness is tenant-scoped via composite indexes on slug.
type Product struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string          `json:"tenantId" gorm:"not null;index:idx_products_tenant_id;index:idx_products_tenant_slug,unique"`
	VendorID        *uuid.UUID      `json:"vendorId,omitempty" gorm:"type:uuid;index"`
	CategoryID      uuid.UUID       `json:"categoryId" gorm:"type:uuid;not null;index"`
	Name            string          `json:"name" gorm:"not null"`
	Slug            string          `json:"slug" gorm:"not null;index:idx_products_tenant_slug,unique"`
	Description     *string         `json:"description,omitempty"`
	BasePrice       string          `json:"basePrice" gorm:"not null"`
	IsFeatured      bool            `json:"isFeatured" gorm:"not null;default:false"`
	OriginalURL     *string         `json:"originalUrl,omitempty" gorm:"column:original_url"`
	MetaTitle       *string         `json:"metaTitle,omitempty" gorm:"column:meta_title;type:text"`
	MetaDescription *string         `json:"metaDescription,omitempty" gorm:"column:meta_description;type:text"`
	Status          ProductStatus   `json:"status" gorm:"not null;default:'ACTIVE'"`
	Variants        []*ProductVariant        `json:"variants,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images          []*ProductImage          `json:"images,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	AttributeValues []*ProductAttributeValue `json:"attributeValues,omitempty" gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// ProductVariant represents one size/color variant of a product.
// SKU is tenant-scoped unique; tenant id is denormalized onto the variant so the
// uniqueness constraint does not require a join.
type ProductVariant struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID       uuid.UUID       `json:"productId" gorm:"type:uuid;not null;index"`
	TenantID        string          `json:"tenantId" gorm:"not null;index:idx_variants_tenant_sku,unique"`
	SKU             string          `json:"sku" gorm:"not null;index:idx_variants_tenant_sku,unique"`
	Size            string          `json:"size" gorm:"not null"`
	ColorCode       *string         `json:"colorCode,omitempty" gorm:"column:color_code"`
	PriceAdjustment string          `json:"priceAdjustment" gorm:"not null;default:'0'"`
	Quantity        int             `json:"quantity" gorm:"not null;default:0"`
	InStock         bool            `json:"inStock" gorm:"not null;default:true"`
	Position        int             `json:"position" gorm:"not null;default:0"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// ProductImage stores URL bookkeeping for a product image. VariantIndex links
// the image to one variant by position; nil means product-level.
type ProductImage struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID    uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	URL          string    `json:"url" gorm:"not null"`
	AltText      *string   `json:"altText,omitempty" gorm:"column:alt_text"`
	VariantIndex *int      `json:"variantIndex,omitempty" gorm:"column:variant_index"`
	Position     int       `json:"position" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AttributeDefinition is the per-tenant attribute dictionary, keyed by name.
type AttributeDefinition struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string    `json:"tenantId" gorm:"not null;index:idx_attr_defs_tenant_name,unique"`
	Name      string    `json:"name" gorm:"not null;index:idx_attr_defs_tenant_name,unique"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductAttributeValue links a product to an attribute definition with a value.
type ProductAttributeValue struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID   uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`
	AttributeID uuid.UUID `json:"attributeId" gorm:"type:uuid;not null;index"`
	Value       string    `json:"value" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category represents a product category (read-only for ingestion lookup).
// Code is the 3-letter tag used to derive SKU prefixes.
type Category struct {
	ID        uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string          `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name      string          `json:"name" gorm:"not null"`
	Slug      string          `json:"slug" gorm:"not null"`
	Code      string          `json:"code" gorm:"not null"`
	IsActive  *bool           `json:"isActive" gorm:"column:is_active;default:true"`
	CreatedAt time.Time       `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time       `json:"updatedAt" gorm:"column:updated_at"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"column:deleted_at;index"`
}

// Vendor represents a vendor entity (read-only for ingestion lookup by code).
type Vendor struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"column:tenant_id;not null;index:idx_vendors_tenant_code,unique"`
	Code     string    `json:"code" gorm:"not null;index:idx_vendors_tenant_code,unique"`
	Name     string    `json:"name" gorm:"not null"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the ProductVariant model
func (ProductVariant) TableName() string {
	return "product_variants"
}

// TableName returns the table name for the ProductImage model
func (ProductImage) TableName() string {
	return "product_images"
}

// TableName returns the table name for the AttributeDefinition model
func (AttributeDefinition) TableName() string {
	return "attribute_definitions"
}

// TableName returns the table name for the ProductAttributeValue model
func (ProductAttributeValue) TableName() string {
	return "product_attribute_values"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the Vendor model
func (Vendor) TableName() string {
	return "vendors"
}
