package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:           "info",
			DefaultProvider:    "gemini",
			MaxConcurrentTurns: 5,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				DBPath: "~/.dealbot/deals.db",
			},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Providers: map[string]ProviderConfig{
			"gemini": {
				Enabled:      true,
				APIKey:       "${GEMINI_API_KEY}",
				DefaultModel: "gemini-2.0-flash",
			},
		},
		Assistant: AssistantConfig{
			Temperature:            0.7,
			MaxOutputTokens:        500,
			UrgencyWindowHours:     48,
			GenerateTimeoutSeconds: 15,
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    3000,
			},
			WebSocket: WebSocketConfig{
				Enabled: true,
				Port:    3001,
				Path:    "/ws",
			},
			CLI: CLIConfig{
				Enabled: false,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
