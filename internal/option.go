package internal

import "github.com/starford/linkshelf/internal/logger"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	logger  logger.Logger
	version string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(l logger.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithVersion sets the version reported by the MCP server and startup logs.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, errConfigRequired
	}
	if app.logger == nil {
		l, err := logger.New(app.config.App.LogLevel, app.config.App.PrettyLogs)
		if err != nil {
			return nil, err
		}
		app.logger = l
	}
	return app, nil
}
