package types

import "maps"

// Environment selects the backend the embedded flow talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// IsSupported reports whether e is one of the known environments.
func (e Environment) IsSupported() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Theme is the color scheme requested from the embedded flow.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// LogLevel is the minimum verbosity of the logging gate. ERROR is the least verbose,
// DEBUG the most.
type LogLevel string

const (
	LogLevelError LogLevel = "ERROR"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelDebug LogLevel = "DEBUG"
)

// Verbosity orders levels ERROR < INFO < DEBUG. Unknown levels rank as ERROR.
func (l LogLevel) Verbosity() int {
	switch l {
	case LogLevelDebug:
		return 2
	case LogLevelInfo:
		return 1
	default:
		return 0
	}
}

// LogSetting controls the logging gate. The zero value disables logging.
type LogSetting struct {
	Enabled bool     `json:"enabled"`
	Level   LogLevel `json:"level"`
}

const (
	DefaultTheme    = ThemeSystem
	DefaultLanguage = "en"
)

// Configuration is the immutable input of one embedding attempt. Build it with
// NewConfiguration or decode it from a file; once handed to Embed it is never mutated.
type Configuration struct {
	Environment Environment    `json:"environment"`
	AppIssuer   string         `json:"appIssuer"`
	AccessToken string         `json:"accessToken,omitempty"`
	Theme       Theme          `json:"theme"`
	Language    string         `json:"language"`
	Flow        NullableString `json:"flow"`
	FlowParams  map[string]any `json:"flowParams,omitempty"`
	Embedded    bool           `json:"embedded"`
	LogSetting  LogSetting     `json:"logSetting"`
}

// ConfigOption adjusts a Configuration under construction.
type ConfigOption func(*Configuration)

// NewConfiguration returns a Configuration with the documented defaults applied:
// system theme, "en" language, embedded presentation and logging disabled.
func NewConfiguration(env Environment, appIssuer string, opts ...ConfigOption) Configuration {
	c := Configuration{
		Environment: env,
		AppIssuer:   appIssuer,
		Theme:       DefaultTheme,
		Language:    DefaultLanguage,
		Embedded:    true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c.Clone()
}

func WithAccessToken(token string) ConfigOption {
	return func(c *Configuration) { c.AccessToken = token }
}

func WithTheme(theme Theme) ConfigOption {
	return func(c *Configuration) { c.Theme = theme }
}

func WithLanguage(lang string) ConfigOption {
	return func(c *Configuration) { c.Language = lang }
}

// WithFlow selects a sub-flow. An empty name leaves the default flow.
func WithFlow(flow string) ConfigOption {
	return func(c *Configuration) { c.Flow = NullableStringFrom(flow) }
}

// WithFlowParams sets free-form parameters forwarded to the flow as-is.
func WithFlowParams(params map[string]any) ConfigOption {
	return func(c *Configuration) { c.FlowParams = params }
}

// WithStandalone selects standalone presentation instead of embedded-in-host.
func WithStandalone() ConfigOption {
	return func(c *Configuration) { c.Embedded = false }
}

func WithLogSetting(enabled bool, level LogLevel) ConfigOption {
	return func(c *Configuration) { c.LogSetting = LogSetting{Enabled: enabled, Level: level} }
}

// WithDefaults fills unset optional fields with their defaults. Embedded is not touched
// because false is a meaningful choice.
func (c Configuration) WithDefaults() Configuration {
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LogSetting.Level == "" {
		c.LogSetting.Level = LogLevelError
	}
	return c.Clone()
}

// Clone returns a copy that shares no mutable state with c.
func (c Configuration) Clone() Configuration {
	if c.FlowParams != nil {
		c.FlowParams = maps.Clone(c.FlowParams)
	}
	return c
}
