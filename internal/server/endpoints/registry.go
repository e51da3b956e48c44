package endpoints

import (
	"github.com/pagelens/pagelens/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Pipeline endpoints
		&ExtractEndpoint{},
		&ValidateEndpoint{},

		// Table endpoints
		&MergeTablesEndpoint{},
		&ExtractTablesEndpoint{},

		// Configuration
		&ConfigEndpoint{},
	}
}
