package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyops/dronectl/internal/config"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/internal/vehicle/mavlink"
	"github.com/skyops/dronectl/internal/vehicle/sim"
)

// openLink connects to the vehicle named by the link config and returns it with the MAVLink
// system ID it answered from (zero for the simulator).
func openLink(ctx context.Context, cfg config.LinkConfig, logger *slog.Logger) (vehicle.Link, uint8, error) {
	switch strings.ToLower(cfg.Type) {
	case "sim":
		logger.Info("Starting simulated vehicle")
		return sim.New(sim.Config{}, logger), 0, nil
	case "", "mavlink":
		logger.Info("Waiting for vehicle...", "endpoint", cfg.Endpoint, "timeout", cfg.DiscoveryTimeout)
		link, err := mavlink.Dial(ctx, mavlink.Config{
			Endpoint:         cfg.Endpoint,
			SystemID:         cfg.SystemID,
			CommandTimeout:   cfg.CommandTimeout,
			DiscoveryTimeout: cfg.DiscoveryTimeout,
		}, logger)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to connect to vehicle at %s: %w", cfg.Endpoint, err)
		}
		system, _ := link.Target()
		logger.Info("Vehicle connected", "system", system)
		return link, system, nil
	default:
		return nil, 0, fmt.Errorf("unknown link type: %s", cfg.Type)
	}
}
