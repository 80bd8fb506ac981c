package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved output locations
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Harvester", GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("output_dir", config.Output.Dir).
		Str("log_level", config.Logging.Level).
		Msg("Harvester starting")
}
