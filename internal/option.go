package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mcp    bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMCP switches the application to MCP stdio mode: no HTTP server, no
// file watcher, tools served over stdin/stdout.
func WithMCP() Option {
	return func(a *application) {
		a.mcp = true
	}
}
