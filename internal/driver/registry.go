// internal/driver/registry.go
package driver

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"adcp-service/internal/model"
	"adcp-service/pkg/driver"
)

// DriverFactory creates a projector driver bound to a command channel
type DriverFactory func(client driver.Commander, info *model.ProjectorInfo, logger *zap.Logger) (driver.ProjectorDriver, error)

// Registry manages projector driver registration and creation
type Registry struct {
	drivers map[DriverKey]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// DriverKey uniquely identifies a driver
type DriverKey struct {
	Brand model.DeviceBrand
	Model string
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		drivers: make(map[DriverKey]DriverFactory),
		logger:  logger,
	}
}

// Register registers a driver factory. Model "*" matches any model of brand.
func (r *Registry) Register(brand model.DeviceBrand, deviceModel string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[DriverKey{Brand: brand, Model: deviceModel}] = factory
	r.logger.Debug("Driver registered",
		zap.String("brand", string(brand)),
		zap.String("model", deviceModel),
	)
}

// CreateDriver creates a driver instance for the projector described by info
func (r *Registry) CreateDriver(info *model.ProjectorInfo, client driver.Commander) (driver.ProjectorDriver, error) {
	factory, ok := r.lookup(info.Brand, info.Model)
	if !ok {
		return nil, fmt.Errorf("no driver found for brand=%s, model=%s", info.Brand, info.Model)
	}
	return factory(client, info, r.logger)
}

// IsSupported checks if a projector model is supported
func (r *Registry) IsSupported(brand model.DeviceBrand, deviceModel string) bool {
	_, ok := r.lookup(brand, deviceModel)
	return ok
}

// ListDrivers returns all registered drivers ordered by brand and model
func (r *Registry) ListDrivers() []DriverKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]DriverKey, 0, len(r.drivers))
	for key := range r.drivers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Brand != keys[j].Brand {
			return keys[i].Brand < keys[j].Brand
		}
		return keys[i].Model < keys[j].Model
	})
	return keys
}

func (r *Registry) lookup(brand model.DeviceBrand, deviceModel string) (DriverFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Try exact match first
	key := DriverKey{Brand: brand, Model: deviceModel}
	if factory, exists := r.drivers[key]; exists {
		return factory, true
	}

	// Then any model of the brand
	key.Model = "*"
	if factory, exists := r.drivers[key]; exists {
		return factory, true
	}

	// Finally the generic driver
	key.Brand = model.BrandGeneric
	factory, exists := r.drivers[key]
	return factory, exists
}
