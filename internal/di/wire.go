//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/config"
)

// InitializeContainer is the wire injector for the same graph NewContainer
// builds by hand.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
