package config

const (
	defaultConfigPath              = "~/.config/sorter/config.toml"
	defaultLogDir                  = "~/.local/share/sorter/logs"
	defaultAPIBind                 = "127.0.0.1:7488"
	defaultGridSource              = GridSourceDefault
	defaultSlotCapacity            = 2
	defaultSortingMode             = SortingModeAlphaExact
	defaultLowConfidenceThreshold  = 0.80
	defaultNearFullThreshold       = 0.90
	defaultTickIntervalMillis      = 1000
	defaultDemoTickIntervalMillis  = 250
	defaultRecentErrors            = 8
	defaultThroughputWindowSeconds = 60
	defaultStepIntervalMillis      = 500
	defaultMaxPending              = 1024
	defaultCatalogMinScore         = 50
	defaultNotifyTimeoutSeconds    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
)

// Grid source identifiers.
const (
	GridSourceDefault = "default"
	GridSourceTOML    = "toml"
	GridSourceSQLite  = "sqlite"
)

// SortingModeAlphaExact routes items by the first letter of their name.
const SortingModeAlphaExact = "alpha_exact"

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Grid: Grid{
			Source:       defaultGridSource,
			SlotCapacity: defaultSlotCapacity,
		},
		Sorting: Sorting{
			Mode:                   defaultSortingMode,
			LowConfidenceThreshold: defaultLowConfidenceThreshold,
			NearFullThreshold:      defaultNearFullThreshold,
		},
		Run: Run{
			TickIntervalMillis:      defaultTickIntervalMillis,
			DemoTickIntervalMillis:  defaultDemoTickIntervalMillis,
			RecentErrors:            defaultRecentErrors,
			ThroughputWindowSeconds: defaultThroughputWindowSeconds,
		},
		Pipeline: Pipeline{
			StepIntervalMillis: defaultStepIntervalMillis,
			MaxPending:         defaultMaxPending,
		},
		Catalog: Catalog{
			MinScore: defaultCatalogMinScore,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
