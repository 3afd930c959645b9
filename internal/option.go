package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOut receives structured logs. MCP mode needs stderr because stdout
	// carries the protocol.
	logOut io.Writer
	// reportOut receives human-readable command output.
	reportOut io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects structured logs.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOut = w
	}
}

// WithReportOutput sets where Check writes violations.
func WithReportOutput(w io.Writer) Option {
	return func(a *application) {
		a.reportOut = w
	}
}
