// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"adcp-service/internal/driver/sony"
	"adcp-service/internal/model"
)

// sonyModels are the VPL models known to speak ADCP
var sonyModels = []string{
	"VPL-XW5000ES",
	"VPL-XW6000ES",
	"VPL-XW7000ES",
	"VPL-VW290ES",
	"VPL-VW790ES",
	"VPL-GTZ380",
}

// RegisterDefaultDrivers registers all default projector drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerSonyDrivers(registry, logger)
}

// registerSonyDrivers registers Sony VPL drivers
func registerSonyDrivers(registry *Registry, logger *zap.Logger) {
	for _, m := range sonyModels {
		registry.Register(model.BrandSony, m, sony.NewProjectorDriver)
	}

	// Any other Sony projector gets the same ADCP vocabulary
	registry.Register(model.BrandSony, "*", sony.NewProjectorDriver)

	logger.Info("Sony projector drivers registered",
		zap.Int("models", len(sonyModels)+1),
	)
}
