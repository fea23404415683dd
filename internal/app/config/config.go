// Package config defines the application configuration interface.
// Configuration is loaded from setting.json by the infra layer; this package
// only exposes the read-side contract consumed by the rest of the app.
package config

// Config provides read access to the effective configuration
type Config interface {
	// Home returns the conductor home directory (e.g., ".conductor")
	Home() string

	// DefaultEngine returns the engine used when none is requested (e.g., "claude")
	DefaultEngine() string

	// EngineBin returns the binary override for an engine, or "" for the default
	EngineBin(name string) string

	// TimeoutSec returns the per-chunk engine wait bound in seconds
	TimeoutSec() int

	// Validate reports whether optional schema validation of internal records is enabled
	Validate() bool

	// StrictFsync reports whether fsync failures are treated as hard errors
	StrictFsync() bool

	// StderrLevel returns the minimum stderr log level (debug/info/warn/error)
	StderrLevel() string

	// ConfigSource returns where the config came from (json/default)
	ConfigSource() string
}

// AppConfig is the concrete configuration built by the settings loader
type AppConfig struct {
	home         string
	engine       string
	engineBins   map[string]string
	timeoutSec   int
	validate     bool
	strictFsync  bool
	stderrLevel  string
	configSource string
}

// NewAppConfig creates an AppConfig from resolved values
func NewAppConfig(
	home string,
	engine string,
	engineBins map[string]string,
	timeoutSec int,
	validate bool,
	strictFsync bool,
	stderrLevel string,
	configSource string,
) *AppConfig {
	if engineBins == nil {
		engineBins = map[string]string{}
	}
	return &AppConfig{
		home:         home,
		engine:       engine,
		engineBins:   engineBins,
		timeoutSec:   timeoutSec,
		validate:     validate,
		strictFsync:  strictFsync,
		stderrLevel:  stderrLevel,
		configSource: configSource,
	}
}

func (c *AppConfig) Home() string          { return c.home }
func (c *AppConfig) DefaultEngine() string { return c.engine }
func (c *AppConfig) EngineBin(name string) string {
	return c.engineBins[name]
}
func (c *AppConfig) TimeoutSec() int      { return c.timeoutSec }
func (c *AppConfig) Validate() bool       { return c.validate }
func (c *AppConfig) StrictFsync() bool    { return c.strictFsync }
func (c *AppConfig) StderrLevel() string  { return c.stderrLevel }
func (c *AppConfig) ConfigSource() string { return c.configSource }
