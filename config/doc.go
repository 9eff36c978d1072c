// Package config loads service configuration from YAML, .env files and the
// environment.
//
// Precedence, lowest to highest: registered defaults, the YAML file, legacy
// environment aliases, then environment variables named after the config key
// (server.port -> SERVER_PORT).
//
//	var cfg app.Config
//	err := config.LoadConfig("asrgate", &cfg,
//		config.WithDefaults(app.Defaults()),
//		config.WithEnvAliases(map[string]string{"PORT": "server.port"}),
//	)
package config
