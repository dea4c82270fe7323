package fx

import (
	"personalfinancedss/internal/config"
	"personalfinancedss/internal/module/predictor"

	"go.uber.org/fx"
)

// Application creates the main FX application with all modules.
func Application() *fx.App {
	options := []fx.Option{
		// Core modules
		CoreModule,

		// Consumption Cycle Predictor module
		predictor.Module,

		// App module (wires everything together)
		AppModule,
	}

	// Suppress FX logs in production for cleaner output
	if config.IsProduction() {
		options = append(options, fx.NopLogger)
	}

	return fx.New(options...)
}
