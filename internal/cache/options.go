package cache

import (
	"time"

	"github.com/louisbranch/savepoint/internal/platform/config"
	"github.com/louisbranch/savepoint/internal/retry"
)

// DefaultGlobalScope is the sentinel scope for unscoped entries.
const DefaultGlobalScope = "global"

// Options is the recognized configuration surface of the cache engine.
type Options struct {
	// AttemptCount bounds retries per remote call.
	AttemptCount int `env:"SAVEPOINT_ATTEMPT_COUNT" envDefault:"3"`
	// AttemptDelay is the pause between failed attempts.
	AttemptDelay time.Duration `env:"SAVEPOINT_ATTEMPT_DELAY" envDefault:"500ms"`
	// LoadDataInstantly makes Resolve load the value eagerly instead of
	// deferring to the first Get.
	LoadDataInstantly bool `env:"SAVEPOINT_LOAD_INSTANTLY" envDefault:"false"`
	// SetCacheToFirstDefault preserves the reference quirk of caching the
	// absence marker after the first defaulted Get. See Entry.Get.
	SetCacheToFirstDefault bool `env:"SAVEPOINT_CACHE_FIRST_DEFAULT" envDefault:"false"`
	// GlobalScopeKey names the scope used when none is given.
	GlobalScopeKey string `env:"SAVEPOINT_GLOBAL_SCOPE" envDefault:"global"`
	// IdentityKeyPrefix is the reserved prefix for identity-derived keys.
	IdentityKeyPrefix string `env:"SAVEPOINT_IDENTITY_PREFIX" envDefault:"User"`
}

// OptionsFromEnv loads Options from environment variables.
func OptionsFromEnv() (Options, error) {
	var opts Options
	if err := config.ParseEnv(&opts); err != nil {
		return Options{}, err
	}
	return opts.normalized(), nil
}

func (o Options) normalized() Options {
	if o.AttemptCount < 1 {
		o.AttemptCount = retry.DefaultAttempts
	}
	if o.AttemptDelay <= 0 {
		o.AttemptDelay = retry.DefaultDelay
	}
	if o.GlobalScopeKey == "" {
		o.GlobalScopeKey = DefaultGlobalScope
	}
	if o.IdentityKeyPrefix == "" {
		o.IdentityKeyPrefix = "User"
	}
	return o
}
