package model

// Config holds the runtime configuration loaded from the environment and the
// app config file.
type Config struct {
	ListenAddr        string `mapstructure:"listen_addr"`
	DataDir           string `mapstructure:"data_dir"`
	DatabasePath      string `mapstructure:"database_path"`
	WebhookURL        string `mapstructure:"webhook_url"`
	ReviewHorizonDays int    `mapstructure:"review_horizon_days"`
	BonusResetEnabled bool   `mapstructure:"bonus_reset_enabled"`
	BrandTitle        string `mapstructure:"brand_title"`
}
