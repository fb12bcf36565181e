package app

import (
	"stockservice/internal/config"
	"stockservice/internal/inventory"
	"stockservice/internal/platform/ops"
)

// ServiceFactory creates business logic services with their dependencies
type ServiceFactory struct {
	container *Container
	infra     *Infrastructure
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(container *Container, infra *Infrastructure) *ServiceFactory {
	return &ServiceFactory{
		container: container,
		infra:     infra,
	}
}

// CreateNotifier publishes stock changes when a producer is configured
func (f *ServiceFactory) CreateNotifier() inventory.Notifier {
	if f.infra.Producer() == nil {
		return inventory.NopNotifier()
	}
	return inventory.NewKafkaNotifier(f.infra.Producer(), f.container.Logger())
}

// CreateOrchestrator creates the stock event pipeline
func (f *ServiceFactory) CreateOrchestrator() *inventory.Orchestrator {
	return inventory.NewOrchestrator(
		f.infra.Ledger(),
		f.infra.Catalog(),
		f.container.Logger(),
		f.container.Tracer(),
		inventory.Options{
			AllowNegativeStock: f.container.Config().AllowNegativeStock,
			Notifier:           f.CreateNotifier(),
		},
	)
}

// CreateMessageHandler creates a new message handler instance
func (f *ServiceFactory) CreateMessageHandler(service inventory.Service) inventory.MessageHandler {
	return inventory.NewMessageHandler(service, TopicKinds(f.container.Config()), f.container.Logger())
}

// CreateConsumerService creates the Kafka worker pool
func (f *ServiceFactory) CreateConsumerService(handler inventory.MessageHandler) inventory.ConsumerService {
	return inventory.NewConsumerService(
		f.infra.Consumers(),
		handler,
		f.container.Logger(),
		f.container.Config().RetryMaxElapsed,
	)
}

// CreateOpsServer creates the health and metrics server
func (f *ServiceFactory) CreateOpsServer() *ops.Server {
	handler := ops.NewHandler(f.container.MetricsHandler(), f.infra.ReadinessChecks())
	return ops.NewServer(f.container.Config().OpsAddr, handler, f.container.Logger())
}

// TopicKinds maps every subscribed topic to the event kind it carries.
func TopicKinds(cfg *config.Config) map[string]inventory.Kind {
	return map[string]inventory.Kind{
		cfg.ProductsTopic:    inventory.KindProduct,
		cfg.StoresTopic:      inventory.KindStore,
		cfg.SalesTopic:       inventory.KindSale,
		cfg.AdjustmentsTopic: inventory.KindStockAdjustment,
	}
}

// KindTopic returns the topic configured for kind.
func KindTopic(cfg *config.Config, kind inventory.Kind) string {
	for topic, k := range TopicKinds(cfg) {
		if k == kind {
			return topic
		}
	}
	return ""
}
