package isettingsrepo

import "context"

// ISettingsRepository is a key-value settings store, used for the
// persisted currency-rate cache.
type ISettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
