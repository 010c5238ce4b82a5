package identifier

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

const (
	slugRetryLimit = 10
	skuRetryLimit  = 10
	fallbackPrefix = "PRD"
)

var (
	strippedChars  = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	separatorChars = regexp.MustCompile(`[\s_]+`)
	multiHyphen    = regexp.MustCompile(`-+`)
	prefixChars    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// categoryPrefixes maps category codes to SKU prefixes for codes that are
// not themselves 3-letter tokens.
var categoryPrefixes = map[string]string{
	"sarees":      "SAR",
	"lehengas":    "LEH",
	"kurtas":      "KUR",
	"accessories": "ACC",
	"jewellery":   "JWL",
	"footwear":    "FTW",
}

// Store is the persistence surface consulted for uniqueness. Checks hit
// current stored state at the moment of generation, never a cache.
type Store interface {
	ProductSlugExists(ctx context.Context, tenantID, slug string) (bool, error)
	VariantSKUExists(ctx context.Context, tenantID, sku string) (bool, error)
}

// Issuer mints unique product slugs and variant SKUs.
type Issuer interface {
	Slugify(ctx context.Context, tenantID, name string) (string, error)
	SKUFor(ctx context.Context, tenantID, categoryCode string, rowIndex int) (string, error)
}

// Generator produces collision-free slugs and SKUs. The clock and random
// source are injectable for tests.
type Generator struct {
	store Store
	now   func() time.Time
	rand  *rand.Rand
}

func New(store Store) *Generator {
	return &Generator{
		store: store,
		now:   time.Now,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Slugify converts a product name into a unique URL-friendly slug. On
// collision it appends -1, -2, ... up to a bounded number of attempts, then
// falls back to a random hex suffix.
func (g *Generator) Slugify(ctx context.Context, tenantID, name string) (string, error) {
	return g.slugify(ctx, tenantID, name, nil)
}

// SKUFor generates a unique SKU of the form PREFIX-NNNN. The prefix comes
// from the category code (used verbatim when already a 3-letter token,
// otherwise looked up in the prefix table, otherwise PRD). After a bounded
// number of random attempts a timestamp-derived suffix guarantees
// termination.
func (g *Generator) SKUFor(ctx context.Context, tenantID, categoryCode string, rowIndex int) (string, error) {
	return g.skuFor(ctx, tenantID, categoryCode, rowIndex, nil)
}

// Scope returns an Issuer that also treats every identifier it has issued as
// taken. A processing run transforms a whole batch before anything commits,
// so storage checks alone cannot see identifiers minted for rows still in
// flight; each run issues through its own scope to close that window.
func (g *Generator) Scope() Issuer {
	return &scope{
		gen:   g,
		slugs: make(map[string]struct{}),
		skus:  make(map[string]struct{}),
	}
}

type scope struct {
	gen   *Generator
	slugs map[string]struct{}
	skus  map[string]struct{}
}

func (s *scope) Slugify(ctx context.Context, tenantID, name string) (string, error) {
	slug, err := s.gen.slugify(ctx, tenantID, name, func(candidate string) bool {
		_, taken := s.slugs[candidate]
		return taken
	})
	if err != nil {
		return "", err
	}
	s.slugs[slug] = struct{}{}
	return slug, nil
}

func (s *scope) SKUFor(ctx context.Context, tenantID, categoryCode string, rowIndex int) (string, error) {
	sku, err := s.gen.skuFor(ctx, tenantID, categoryCode, rowIndex, func(candidate string) bool {
		_, taken := s.skus[candidate]
		return taken
	})
	if err != nil {
		return "", err
	}
	s.skus[sku] = struct{}{}
	return sku, nil
}

// slugify strips characters that are neither word characters, separators nor
// hyphens, then collapses separators into single hyphens, so "Silk's Saree"
// becomes "silks-saree" rather than "silk-s-saree". reserved, when non-nil,
// marks candidates taken beyond what the store knows.
func (g *Generator) slugify(ctx context.Context, tenantID, name string, reserved func(string) bool) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strippedChars.ReplaceAllString(slug, "")
	slug = separatorChars.ReplaceAllString(slug, "-")
	slug = multiHyphen.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		slug = "product"
	}

	baseSlug := slug
	for attempt := 0; attempt <= slugRetryLimit; attempt++ {
		if attempt > 0 {
			slug = fmt.Sprintf("%s-%d", baseSlug, attempt)
		}
		if reserved != nil && reserved(slug) {
			continue
		}
		exists, err := g.store.ProductSlugExists(ctx, tenantID, slug)
		if err != nil {
			return "", fmt.Errorf("slug uniqueness check failed: %w", err)
		}
		if !exists {
			return slug, nil
		}
	}

	// Every numbered candidate is taken; a random suffix ends the search.
	return fmt.Sprintf("%s-%04x", baseSlug, g.rand.Intn(0x10000)), nil
}

func (g *Generator) skuFor(ctx context.Context, tenantID, categoryCode string, rowIndex int, reserved func(string) bool) (string, error) {
	prefix := skuPrefix(categoryCode)

	for attempt := 0; attempt < skuRetryLimit; attempt++ {
		sku := fmt.Sprintf("%s-%04d", prefix, g.rand.Intn(10000))
		if reserved != nil && reserved(sku) {
			continue
		}
		exists, err := g.store.VariantSKUExists(ctx, tenantID, sku)
		if err != nil {
			return "", fmt.Errorf("sku uniqueness check failed: %w", err)
		}
		if !exists {
			return sku, nil
		}
	}

	// The timestamp-and-row suffix is unique per row, so it needs no
	// reservation check.
	return fmt.Sprintf("%s-%d-%d", prefix, g.now().UnixMilli()%1000000, rowIndex), nil
}

func skuPrefix(categoryCode string) string {
	code := strings.TrimSpace(categoryCode)
	if prefixChars.MatchString(strings.ToUpper(code)) {
		return strings.ToUpper(code)
	}
	if prefix, ok := categoryPrefixes[strings.ToLower(code)]; ok {
		return prefix
	}
	return fallbackPrefix
}
