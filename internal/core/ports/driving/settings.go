package driving

import (
	"context"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

// SettingsService reads and updates user settings.
type SettingsService interface {
	// Settings returns the effective settings, including the client secret.
	Settings(ctx context.Context) (domain.Settings, error)

	// View returns the settings with the secret reduced to a presence flag.
	View(ctx context.Context) (domain.SettingsView, error)

	// Update applies a partial update and persists it.
	Update(ctx context.Context, update domain.SettingsUpdate) (domain.SettingsView, error)
}
