package sync

import (
	"context"
	"log"
)

// Engine is the sync engine wired against the Dataverse Web API and Campaign Monitor.
type Engine struct {
	CRM          *CRMWebAPIClient
	ESP          CreateSendClient
	Cache        *MetadataCache
	Metadata     *MetadataResolver
	Mapper       *FieldMappingEngine
	Duplicates   *DuplicateEmailChecker
	Orchestrator *Orchestrator
}

// Init loads the configuration once to connect the API clients and size the metadata cache.
// The orchestrator still reloads the sync settings through loader on every operation.
// When recordRequests is set, API traffic is recorded under that directory.
func Init(ctx context.Context, loader ConfigurationLoader, recordRequests string) (Engine, error) {
	var result Engine
	cfg, err := loader.LoadConfiguration(ctx)
	if err != nil {
		return result, err
	}
	if cfg.API.CRM.Endpoint == "" {
		return result, NewConfigurationError("crm endpoint is not configured")
	}
	ttl, err := cfg.Metadata.CacheTTL()
	if err != nil {
		return result, NewConfigurationError("invalid metadata settings", err)
	}

	result.CRM = NewCRMWebAPIClient(cfg.API.CRM.Endpoint, cfg.API.CRM.Token)
	espEndpoint := cfg.API.ESP.Endpoint
	if espEndpoint == "" {
		espEndpoint = DefaultCreateSendEndpoint
	}
	result.ESP = NewCreateSendClient(espEndpoint, cfg.API.ESP.Key)
	if recordRequests != "" {
		result.CRM.RecordRequests = recordRequests + "/crm"
		result.ESP.RecordRequests = recordRequests + "/createsend"
	}

	result.Cache = NewMetadataCache(ttl)
	result.Metadata = NewMetadataResolver(result.CRM, result.Cache)
	result.Mapper = NewFieldMappingEngine(result.Metadata, result.CRM)
	result.Duplicates = NewDuplicateEmailChecker(result.CRM, NewConfigFilterResolver(result.CRM))
	result.Orchestrator = NewOrchestrator(loader, result.Duplicates, result.Mapper, result.ESP)

	log.Printf("Sync engine ready for %s (list %s, metadata ttl %v)", cfg.API.CRM.Endpoint, cfg.Sync.ListID, ttl)
	return result, nil
}
