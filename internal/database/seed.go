// Pixelboard - Collaborative Canvas Real-time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pixelboard

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/pixelboard/internal/board"
	"github.com/tomtom215/pixelboard/internal/config"
	"github.com/tomtom215/pixelboard/internal/logging"
)

// SeedBoards creates every board in cfg.SeedBoards that does not exist yet.
func SeedBoards(ctx context.Context, seeder board.Seeder, cfg config.DatabaseConfig) error {
	for _, seed := range cfg.SeedBoards {
		info, err := board.ParseSeed(seed)
		if err != nil {
			return err
		}
		info.BasePrice = cfg.BasePrice
		info.PriceStep = cfg.PriceStep

		created, err := seeder.CreateBoard(ctx, info)
		if err != nil {
			return fmt.Errorf("seed board %s: %w", info.ID, err)
		}
		if created {
			logging.Info().
				Str("board_id", info.ID).
				Int("width", info.Width).
				Int("height", info.Height).
				Msg("Seeded board")
		}
	}
	return nil
}
