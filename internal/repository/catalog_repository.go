package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ingestion-service/internal/models"
)

// Cache TTL constants
const (
	CategoryCacheTTL = 30 * time.Minute // Categories rarely change
	VendorCacheTTL   = 30 * time.Minute
)

// CatalogRepository serves catalog lookups and the atomic batch commit.
type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	repo := &CatalogRepository{
		db:    db,
		redis: redis,
	}

	// Initialize CacheLayer with the existing Redis client
	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: CategoryCacheTTL,
			KeyPrefix:  "tesseract:ingestion:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// GetCategoryByID retrieves a category by ID with caching. Returns nil when
// the category does not exist.
func (r *CatalogRepository) GetCategoryByID(ctx context.Context, tenantID string, categoryID uuid.UUID) (*models.Category, error) {
	cacheKey := fmt.Sprintf("category:%s:%s", tenantID, categoryID.String())

	fetch := func() (*models.Category, error) {
		var c models.Category
		if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, categoryID).First(&c).Error; err != nil {
			return nil, err
		}
		return &c, nil
	}

	if r.cache != nil {
		var category models.Category
		err := r.cache.GetOrSetJSON(ctx, cacheKey, &category, CategoryCacheTTL, func() (any, error) {
			return fetch()
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &category, nil
	}

	category, err := fetch()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return category, err
}

// GetVendorByCode retrieves a vendor by its code with caching. Returns nil
// when no vendor matches.
func (r *CatalogRepository) GetVendorByCode(ctx context.Context, tenantID, code string) (*models.Vendor, error) {
	cacheKey := fmt.Sprintf("vendor:%s:%s", tenantID, code)

	fetch := func() (*models.Vendor, error) {
		var v models.Vendor
		if err := r.db.WithContext(ctx).Where("tenant_id = ? AND code = ?", tenantID, code).First(&v).Error; err != nil {
			return nil, err
		}
		return &v, nil
	}

	if r.cache != nil {
		var vendor models.Vendor
		err := r.cache.GetOrSetJSON(ctx, cacheKey, &vendor, VendorCacheTTL, func() (any, error) {
			return fetch()
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &vendor, nil
	}

	vendor, err := fetch()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return vendor, err
}

// GetOrCreateAttribute finds an attribute definition by name or creates it.
// Uses a transaction with a duplicate-key fallback to handle concurrent
// creation of the same attribute name.
func (r *CatalogRepository) GetOrCreateAttribute(ctx context.Context, tenantID, name string) (*models.AttributeDefinition, error) {
	var attr models.AttributeDefinition

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, name).First(&attr).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to lookup attribute: %w", err)
		}

		attr = models.AttributeDefinition{
			TenantID:  tenantID,
			Name:      name,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := tx.Create(&attr).Error; err != nil {
			// Created by a concurrent request; fetch the winner.
			if strings.Contains(err.Error(), "duplicate") {
				if findErr := tx.Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, name).First(&attr).Error; findErr == nil {
					return nil
				}
			}
			return fmt.Errorf("failed to create attribute '%s': %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &attr, nil
}

// ProductSlugExists checks slug uniqueness against current state, including
// soft-deleted rows since the unique index covers them.
func (r *CatalogRepository) ProductSlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).
		Count(&count).Error
	return count > 0, err
}

// VariantSKUExists checks SKU uniqueness against current state.
func (r *CatalogRepository) VariantSKUExists(ctx context.Context, tenantID, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		Count(&count).Error
	return count > 0, err
}

// CommitBatch persists a batch of product graphs and advances the session
// checkpoint in one transaction. Slug and SKU uniqueness are re-asserted
// inside the transaction to close the race between validation and commit.
// The checkpoint update carries a monotonic guard so a stale writer can
// never move it backwards.
func (r *CatalogRepository) CommitBatch(ctx context.Context, session *models.ImportSession, products []*models.Product, lastRowIndex int) (models.ImportCounts, error) {
	var counts models.ImportCounts

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, product := range products {
			var slugCount int64
			if err := tx.Unscoped().Model(&models.Product{}).
				Where("tenant_id = ? AND slug = ?", product.TenantID, product.Slug).
				Count(&slugCount).Error; err != nil {
				return err
			}
			if slugCount > 0 {
				return fmt.Errorf("slug '%s' already exists", product.Slug)
			}

			for _, variant := range product.Variants {
				var skuCount int64
				if err := tx.Model(&models.ProductVariant{}).
					Where("tenant_id = ? AND sku = ?", product.TenantID, variant.SKU).
					Count(&skuCount).Error; err != nil {
					return err
				}
				if skuCount > 0 {
					return fmt.Errorf("SKU '%s' already exists", variant.SKU)
				}
			}

			if err := tx.Create(product).Error; err != nil {
				return fmt.Errorf("failed to create product '%s': %w", product.Name, err)
			}

			counts.ProductsCreated++
			counts.VariantsCreated += len(product.Variants)
			counts.AttributesCreated += len(product.AttributeValues)
			counts.ImagesUploaded += len(product.Images)
		}

		result := tx.Model(&models.ImportSession{}).
			Where("id = ? AND last_committed_row_index < ?", session.ID, lastRowIndex).
			Updates(map[string]interface{}{
				"last_committed_row_index": lastRowIndex,
				"products_created":         gorm.Expr("products_created + ?", counts.ProductsCreated),
				"variants_created":         gorm.Expr("variants_created + ?", counts.VariantsCreated),
				"attributes_created":       gorm.Expr("attributes_created + ?", counts.AttributesCreated),
				"images_uploaded":          gorm.Expr("images_uploaded + ?", counts.ImagesUploaded),
				"updated_at":               time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("checkpoint at row %d is behind the stored checkpoint", lastRowIndex)
		}
		return nil
	})
	if err != nil {
		return models.ImportCounts{}, err
	}

	return counts, nil
}
