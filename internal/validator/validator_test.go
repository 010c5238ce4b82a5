package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ingestion-service/internal/models"
)

type MockLookups struct {
	mock.Mock
}

func (m *MockLookups) GetCategoryByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockLookups) GetVendorByCode(ctx context.Context, tenantID, code string) (*models.Vendor, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vendor), args.Error(1)
}

func (m *MockLookups) VariantSKUExists(ctx context.Context, tenantID, sku string) (bool, error) {
	args := m.Called(ctx, tenantID, sku)
	return args.Bool(0), args.Error(1)
}

func testRow(index int, overrides map[string]string) models.Row {
	cells := map[string]string{
		models.ColumnName:            "Silk Saree",
		models.ColumnBasePrice:       "1499.00",
		models.ColumnVariantQuantity: "25",
		models.ColumnImageURLs:       "https://cdn.example.com/a.jpg",
	}
	for k, v := range overrides {
		cells[k] = v
	}
	columns := make([]string, 0, len(cells))
	for k := range cells {
		columns = append(columns, k)
	}
	return models.Row{Index: index, Columns: columns, Cells: cells}
}

func setup(t *testing.T) (*Validator, *MockLookups, uuid.UUID) {
	t.Helper()
	lookups := new(MockLookups)
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	categoryID := uuid.New()
	lookups.On("GetCategoryByID", mock.Anything, "tenant-1", categoryID).
		Return(&models.Category{ID: categoryID, Name: "Sarees"}, nil).Maybe()
	return New(lookups, logger), lookups, categoryID
}

func TestValidateAllRowsValid(t *testing.T) {
	v, _, categoryID := setup(t)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, nil),
		testRow(2, map[string]string{models.ColumnName: "Cotton Kurta"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.ValidRows)
	assert.Equal(t, 0, report.ErrorRows)
	assert.Len(t, report.ValidData, 2)
}

func TestValidateMissingCategoryShortCircuits(t *testing.T) {
	lookups := new(MockLookups)
	logger := logrus.New()
	logger.SetOutput(&strings.Builder{})
	categoryID := uuid.New()
	lookups.On("GetCategoryByID", mock.Anything, "tenant-1", categoryID).Return(nil, nil)
	v := New(lookups, logger)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{testRow(1, nil)})
	require.NoError(t, err)

	require.Len(t, report.Errors, 1)
	assert.Equal(t, "category_id", report.Errors[0].Field)
	assert.Equal(t, 0, report.ValidRows)
	lookups.AssertNotCalled(t, "VariantSKUExists", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateRequiredFields(t *testing.T) {
	v, _, categoryID := setup(t)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{
			models.ColumnName:      "",
			models.ColumnImageURLs: "",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ErrorRows)
	fields := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		fields = append(fields, e.Field)
	}
	assert.Contains(t, fields, models.ColumnName)
	assert.Contains(t, fields, models.ColumnImageURLs)
}

func TestValidateNameLengthCountsRunes(t *testing.T) {
	v, _, categoryID := setup(t)

	// 255 multibyte characters are within the limit even though the byte
	// length is far larger.
	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnName: strings.Repeat("य", 255)}),
		testRow(2, map[string]string{models.ColumnName: strings.Repeat("य", 256)}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ValidRows)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Row)
	assert.Equal(t, models.ColumnName, report.Errors[0].Field)
}

func TestValidateBasePriceBoundaries(t *testing.T) {
	v, _, categoryID := setup(t)

	cases := []struct {
		price string
		valid bool
	}{
		{"0", false},
		{"0.01", true},
		{"-5", false},
		{"abc", false},
		{"999999.99", true},
		{"1000000", false},
	}

	for _, tc := range cases {
		report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
			testRow(1, map[string]string{models.ColumnBasePrice: tc.price}),
		})
		require.NoError(t, err)
		if tc.valid {
			assert.Equal(t, 1, report.ValidRows, "price %s should be valid", tc.price)
		} else {
			assert.Equal(t, 1, report.ErrorRows, "price %s should be an error", tc.price)
		}
	}
}

func TestValidateInvalidPriceRow(t *testing.T) {
	v, _, categoryID := setup(t)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, nil),
		testRow(2, map[string]string{models.ColumnBasePrice: "abc"}),
		testRow(3, nil),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 2, report.ValidRows)
	assert.Equal(t, 1, report.ErrorRows)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 2, report.Errors[0].Row)
	assert.Equal(t, models.ColumnBasePrice, report.Errors[0].Field)
}

func TestValidateBooleanTokens(t *testing.T) {
	v, _, categoryID := setup(t)

	for _, token := range []string{"TRUE", "FALSE", "true", "false", "1", "0"} {
		report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
			testRow(1, map[string]string{models.ColumnIsFeatured: token}),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, report.ValidRows, "token %s should be accepted", token)
	}

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnIsFeatured: "yes"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.ErrorRows)
}

func TestValidateMalformedURLIsWarning(t *testing.T) {
	v, _, categoryID := setup(t)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnImageURLs: "not-a-url"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ValidRows)
	assert.Equal(t, 1, report.WarningRows)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.ColumnImageURLs, report.Warnings[0].Field)
}

func TestValidateColorCodeWarning(t *testing.T) {
	v, _, categoryID := setup(t)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{
			models.ColumnVariantColorCode: "purple",
			models.ColumnVariantSize:      "S",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ValidRows)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.ColumnVariantColorCode, report.Warnings[0].Field)
}

func TestValidateUnknownVendor(t *testing.T) {
	v, lookups, categoryID := setup(t)
	lookups.On("GetVendorByCode", mock.Anything, "tenant-1", "VND-404").Return(nil, nil)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnVendorCode: "VND-404"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ErrorRows)
	assert.Equal(t, models.ColumnVendorCode, report.Errors[0].Field)
}

func TestValidateDuplicateSKU(t *testing.T) {
	v, lookups, categoryID := setup(t)
	lookups.On("VariantSKUExists", mock.Anything, "tenant-1", "SAR-1042").Return(true, nil)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnVariantSKU: "SAR-1042"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ErrorRows)
	assert.Equal(t, models.ColumnVariantSKU, report.Errors[0].Field)
}

func TestValidateBlankSizeWithVariantFieldsWarns(t *testing.T) {
	v, lookups, categoryID := setup(t)
	lookups.On("VariantSKUExists", mock.Anything, "tenant-1", "SAR-9999").Return(false, nil)

	report, err := v.Validate(context.Background(), "tenant-1", categoryID, []models.Row{
		testRow(1, map[string]string{models.ColumnVariantSKU: "SAR-9999"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.ValidRows)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, models.ColumnVariantSize, report.Warnings[0].Field)
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("TRUE", false))
	assert.False(t, ParseBool("0", true))
	assert.True(t, ParseBool("", true))
	assert.False(t, ParseBool("", false))
}
