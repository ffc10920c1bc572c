package di

import "github.com/google/wire"

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	InfrastructureProviders,
	ServiceProviders,
	InterfaceProviders,
	provideContainer,
)

// ObservabilityProviders build the logger, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideLogger,
	provideCollector,
	provideTracing,
)

// InfrastructureProviders build the cache, the replica chain, the fan-out
// and the mapping and invalidation adapters.
var InfrastructureProviders = wire.NewSet(
	provideStore,
	provideBreaker,
	provideSQLExecutor,
	provideExecutor,
	provideBatchProcessor,
	provideTableSource,
	provideRedisBus,
	provideInvalidator,
)

// ServiceProviders build the aggregation service.
var ServiceProviders = wire.NewSet(
	provideService,
)

// InterfaceProviders build the HTTP surface and the metric exporters.
var InterfaceProviders = wire.NewSet(
	provideRouter,
	provideCloudWatch,
)
