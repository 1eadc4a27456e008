package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"rentals/internal/app/uow"
	"rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
	"rentals/internal/domain/user"
	ginserver "rentals/internal/infra/http/gin"
)

type listingFixture struct {
	ID               string `json:"id"`
	Host             string `json:"host"`
	Title            string `json:"title"`
	NightlyRateCents int64  `json:"nightly_rate_cents"`
	Currency         string `json:"currency"`
	MaxGuests        int    `json:"max_guests"`
	InstantBook      bool   `json:"instant_book"`
}

var defaultFixtures = []listingFixture{
	{ID: "lst-loft", Host: "host-1", Title: "Harbour loft", NightlyRateCents: 10000, Currency: "USD", MaxGuests: 4},
	{ID: "lst-cabin", Host: "host-1", Title: "Pine cabin", NightlyRateCents: 8500, Currency: "USD", MaxGuests: 6, InstantBook: true},
	{ID: "lst-studio", Host: "host-2", Title: "Old town studio", NightlyRateCents: 6000, Currency: "EUR", MaxGuests: 2},
}

// seedFixtures stores listings from path, or the built-in set when path is empty.
// Listings that already exist are left alone.
func (a *application) seedFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	fixtures := defaultFixtures
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read fixtures: %w", err)
		}
		fixtures = nil
		if err := json.Unmarshal(data, &fixtures); err != nil {
			return fmt.Errorf("decode fixtures: %w", err)
		}
	}

	now := time.Now()
	hosts := map[string]struct{}{}
	for _, fx := range fixtures {
		rate, err := money.New(fx.NightlyRateCents, fx.Currency)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		listing, err := listings.NewListing(listings.CreateListingParams{
			ID:          listings.ListingID(fx.ID),
			Host:        listings.HostID(fx.Host),
			Title:       fx.Title,
			NightlyRate: rate,
			MaxGuests:   fx.MaxGuests,
			Active:      true,
			InstantBook: fx.InstantBook,
			Now:         now,
		})
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		err = uow.Run(ctx, a.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			if _, err := unit.Listings().ByID(ctx, listing.ID); err == nil {
				return nil
			} else if !errors.Is(err, listings.ErrNotFound) {
				return err
			}
			return unit.Listings().Save(ctx, listing)
		})
		if err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		hosts[fx.Host] = struct{}{}
		logger.Info("listing fixture imported", "listing_id", fx.ID)
	}

	if a.cfg.Env == "dev" || a.cfg.Env == "local" {
		a.logDevTokens(hosts, logger)
	}
	return nil
}

func (a *application) logDevTokens(hosts map[string]struct{}, logger *slog.Logger) {
	secret := []byte(a.cfg.JWTSecret)
	issue := func(subject string, role user.Role) {
		token, err := ginserver.SignToken(secret, subject, role, 24*time.Hour)
		if err != nil {
			logger.Warn("dev token failed", "subject", subject, "error", err)
			return
		}
		logger.Info("dev token", "subject", subject, "role", role, "token", token)
	}
	issue("guest-1", user.RoleGuest)
	issue("admin-1", user.RoleAdmin)
	for host := range hosts {
		issue(host, user.RoleHost)
	}
}
