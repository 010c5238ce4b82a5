package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
)

// Import lifecycle event types published on the products stream.
const (
	ImportStartedEvent   = "product.import_started"
	ImportCompletedEvent = "product.import_completed"
	ImportFailedEvent    = "product.import_failed"
)

// Publisher wraps the go-shared events publisher for import and product events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher creates a new ingestion events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		// Default to GKE internal NATS service URL
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "ingestion-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	// Ensure the products stream exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "ingestion-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// ImportStarted publishes a product.import_started event
func (p *Publisher) ImportStarted(ctx context.Context, tenantID string, session *models.ImportSession) {
	event := events.NewProductEvent(ImportStartedEvent, tenantID)
	event.SourceID = session.ID.String()
	event.ChangeType = "import_started"
	event.NewValue = map[string]interface{}{
		"sessionId":  session.ID.String(),
		"filename":   session.Filename,
		"categoryId": session.CategoryID.String(),
		"validRows":  session.ValidRows,
		"totalRows":  session.TotalRows,
	}
	p.publish(ctx, event)
}

// ImportCompleted publishes a product.import_completed event with final counts
func (p *Publisher) ImportCompleted(ctx context.Context, tenantID string, session *models.ImportSession, counts models.ImportCounts) {
	event := events.NewProductEvent(ImportCompletedEvent, tenantID)
	event.SourceID = session.ID.String()
	event.ChangeType = "import_completed"
	event.NewValue = map[string]interface{}{
		"sessionId":         session.ID.String(),
		"productsCreated":   counts.ProductsCreated,
		"variantsCreated":   counts.VariantsCreated,
		"attributesCreated": counts.AttributesCreated,
		"imagesUploaded":    counts.ImagesUploaded,
	}
	p.publish(ctx, event)
}

// ImportFailed publishes a product.import_failed event
func (p *Publisher) ImportFailed(ctx context.Context, tenantID string, sessionID uuid.UUID, reason string) {
	event := events.NewProductEvent(ImportFailedEvent, tenantID)
	event.SourceID = sessionID.String()
	event.ChangeType = "import_failed"
	event.NewValue = map[string]interface{}{
		"sessionId": sessionID.String(),
		"reason":    reason,
	}
	p.publish(ctx, event)
}

// ProductCreated publishes a product.created event for one imported product
func (p *Publisher) ProductCreated(ctx context.Context, tenantID string, product *models.Product) {
	event := events.NewProductEvent(events.ProductCreated, tenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = product.Name
	event.Status = string(product.Status)
	event.CategoryID = product.CategoryID.String()
	event.ChangeType = "created"

	if len(product.Variants) > 0 {
		event.SKU = product.Variants[0].SKU
	}
	if price, err := parsePrice(product.BasePrice); err == nil {
		event.Price = price
	}
	if product.VendorID != nil {
		event.VendorID = product.VendorID.String()
	}

	p.publish(ctx, event)
}

// parsePrice converts a price string to float64
func parsePrice(priceStr string) (float64, error) {
	var price float64
	_, err := fmt.Sscanf(priceStr, "%f", &price)
	return price, err
}

// publish logs and publishes events asynchronously so the batch loop is never
// blocked on NATS.
func (p *Publisher) publish(_ context.Context, event *events.ProductEvent) {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"sourceID":  event.SourceID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish import event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"sourceID":  event.SourceID,
				"tenantID":  event.TenantID,
			}).Info("Import event published successfully")
		}
	}()
}
