package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"ingestion-service/internal/middleware"
	"ingestion-service/internal/models"
	"ingestion-service/internal/parser"
	"ingestion-service/internal/services"
)

// IngestionService is the pipeline surface the handler depends on.
type IngestionService interface {
	Validate(ctx context.Context, tenantID string, file io.Reader, filename string, categoryID uuid.UUID, dryRun bool) (*models.ValidationReport, error)
	Process(ctx context.Context, tenantID string, sessionID uuid.UUID, req models.ProcessRequest) error
	Resume(ctx context.Context, tenantID string, sessionID uuid.UUID) error
	Status(ctx context.Context, tenantID string, sessionID uuid.UUID) (*models.ImportSession, error)
	List(ctx context.Context, tenantID string, page, limit int) ([]models.ImportSession, int64, error)
}

type ImportHandler struct {
	service IngestionService
}

func NewImportHandler(service IngestionService) *ImportHandler {
	return &ImportHandler{service: service}
}

// GetImportTemplate returns the import template definition or file
// @Summary Download import template
// @Description Get the product import template as JSON definition, CSV or XLSX file
// @Tags Import
// @Produce json
// @Param format query string false "Template format: json, csv or xlsx" default(json)
// @Success 200 {object} models.ImportTemplate
// @Router /products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	// Style for header row
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// Style for required columns
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	// Add Instructions sheet
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")

	f.SetCellValue("Instructions", "A3", "IMPORT FLOW:")
	f.SetCellValue("Instructions", "A4", "1. Fill the Products sheet (one product per row) and upload it to the validate endpoint.")
	f.SetCellValue("Instructions", "A5", "2. Review the validation report; rows with errors are excluded from processing.")
	f.SetCellValue("Instructions", "A6", "3. Trigger processing with the returned session id and poll the status endpoint.")
	f.SetCellValue("Instructions", "A7", "4. If the run times out, call resume - already committed rows are never reprocessed.")

	f.SetCellValue("Instructions", "A9", "DYNAMIC ATTRIBUTES:")
	f.SetCellValue("Instructions", "A10", "Any column named attribute_<name> becomes a product attribute, e.g. attribute_fabric or attribute_care_instructions.")
	f.SetCellValue("Instructions", "A11", "New attribute names are added to the attribute dictionary automatically.")

	f.SetCellValue("Instructions", "A13", "Column Definitions:")
	f.SetCellValue("Instructions", "A14", "Column")
	f.SetCellValue("Instructions", "B14", "Description")
	f.SetCellValue("Instructions", "C14", "Required")
	f.SetCellValue("Instructions", "D14", "Type")
	f.SetCellValue("Instructions", "E14", "Example")

	for i, col := range template.Columns {
		row := i + 15
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}

// ValidateImport validates an uploaded spreadsheet and opens an import session
// @Summary Validate an import file
// @Description Parse and validate a CSV/XLSX upload against a category; returns a per-row report and a session id
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or Excel file"
// @Param categoryId formData string true "Target category ID"
// @Param dryRun query bool false "Validate without creating a session"
// @Success 200 {object} models.ValidationReport
// @Failure 400 {object} models.ErrorResponse
// @Router /products/import/validate [post]
func (h *ImportHandler) ValidateImport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_REQUIRED", "Please upload a CSV or Excel file")
		return
	}
	defer file.Close()

	rawCategoryID := c.PostForm("categoryId")
	if rawCategoryID == "" {
		rawCategoryID = c.Query("categoryId")
	}
	categoryID, err := uuid.Parse(rawCategoryID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_CATEGORY_ID", "categoryId must be a valid UUID")
		return
	}

	dryRun := c.Query("dryRun") == "true"

	report, err := h.service.Validate(c.Request.Context(), tenantID, file, header.Filename, categoryID, dryRun)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			respondError(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error())
			return
		}
		respondError(c, http.StatusBadRequest, "PARSE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    report,
	})
}

// ProcessImport starts processing a validated session in the background
// @Summary Process a validated session
// @Description Start the background import run for a validated session
// @Tags Import
// @Accept json
// @Produce json
// @Param sessionId path string true "Import session ID"
// @Param request body models.ProcessRequest false "Processing options"
// @Success 202 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products/import/{sessionId}/process [post]
func (h *ImportHandler) ProcessImport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req models.ProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
			return
		}
	}

	if err := h.service.Process(c.Request.Context(), tenantID, sessionID, req); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"sessionId": sessionID,
			"status":    models.SessionStatusProcessing,
		},
	})
}

// GetImportStatus returns the latest session snapshot
// @Summary Get import status
// @Description Poll the progress snapshot of an import session
// @Tags Import
// @Produce json
// @Param sessionId path string true "Import session ID"
// @Success 200 {object} models.ImportSession
// @Failure 404 {object} models.ErrorResponse
// @Router /products/import/{sessionId}/status [get]
func (h *ImportHandler) GetImportStatus(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.service.Status(c.Request.Context(), tenantID, sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    session,
	})
}

// ResumeImport resumes a timed-out session from its checkpoint
// @Summary Resume a timed-out import
// @Description Restart a TIMEOUT (or stale crashed) session from the last committed row
// @Tags Import
// @Produce json
// @Param sessionId path string true "Import session ID"
// @Success 202 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /products/import/{sessionId}/resume [post]
func (h *ImportHandler) ResumeImport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	if err := h.service.Resume(c.Request.Context(), tenantID, sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"sessionId": sessionID,
			"status":    models.SessionStatusProcessing,
		},
	})
}

// ListImports returns the tenant's import sessions
// @Summary List import sessions
// @Description Get import sessions for the tenant with pagination, newest first
// @Tags Import
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} models.SuccessResponse
// @Router /imports [get]
func (h *ImportHandler) ListImports(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	sessions, total, err := h.service.List(c.Request.Context(), tenantID, page, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "LIST_FAILED", "Failed to list import sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_SESSION_ID", "sessionId must be a valid UUID")
		return uuid.Nil, false
	}
	return sessionID, true
}

// respondServiceError maps ingestion service errors onto HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		respondError(c, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrSessionAlreadyProcessing):
		respondError(c, http.StatusConflict, "ALREADY_PROCESSING", err.Error())
	case errors.Is(err, services.ErrSessionNotResumable):
		respondError(c, http.StatusConflict, "NOT_RESUMABLE", err.Error())
	case errors.Is(err, services.ErrValidationErrorsPresent):
		respondError(c, http.StatusConflict, "VALIDATION_ERRORS_PRESENT", "Session has validation errors; set proceedWithValidOnly to continue with valid rows")
	case errors.Is(err, services.ErrNoValidRows):
		respondError(c, http.StatusBadRequest, "NO_VALID_ROWS", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetString("request_id"),
	})
}
