package config

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/pkg/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrLoadConfig       = apperrors.New("unable to load configuration").SetExpandError(true)
	ErrConfigFormat     = ErrLoadConfig.New("unsupported configuration file format")
	ErrConfigTemplate   = ErrLoadConfig.New("unable to expand configuration template")
	ErrConfigMissingEnv = ErrConfigTemplate.New("missing environment variable")
	ErrConfigDecode     = ErrLoadConfig.New("unable to decode configuration")
)

// fileConfig mirrors types.Configuration with the keys accepted in configuration files.
type fileConfig struct {
	Environment string           `mapstructure:"environment"`
	AppIssuer   string           `mapstructure:"appIssuer"`
	AccessToken string           `mapstructure:"accessToken"`
	Theme       string           `mapstructure:"theme"`
	Language    string           `mapstructure:"language"`
	Flow        string           `mapstructure:"flow"`
	FlowParams  map[string]any   `mapstructure:"flowParams"`
	Embedded    *bool            `mapstructure:"embedded"`
	LogSetting  types.LogSetting `mapstructure:"logSetting"`
}

type templateContext struct {
	ENV map[string]string
}

// LoadFile reads a TOML, YAML or JSON configuration file. {{ .ENV.NAME }} placeholders are
// expanded from the process environment, falling back to a .env file next to the
// configuration file. The result has defaults applied but is not validated.
func LoadFile(path string) (types.Configuration, apperrors.Error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.Configuration{}, ErrLoadConfig.Err(err)
	}
	expanded, aerr := expandTemplate(content, filepath.Join(filepath.Dir(path), ".env"))
	if aerr != nil {
		return types.Configuration{}, aerr
	}

	raw := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(expanded), &raw); err != nil {
			return types.Configuration{}, ErrConfigDecode.Err(err)
		}
	case ".yaml", ".yml", ".json":
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return types.Configuration{}, ErrConfigDecode.Err(err)
		}
	default:
		return types.Configuration{}, ErrConfigFormat.Msg("unsupported configuration file format: " + filepath.Ext(path))
	}
	return Decode(raw)
}

// Decode converts a generic map, as produced by a TOML or YAML decoder, into a Configuration
// with defaults applied. Unknown keys are rejected.
func Decode(raw map[string]any) (types.Configuration, apperrors.Error) {
	var fc fileConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &fc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return types.Configuration{}, ErrConfigDecode.Err(err)
	}
	if err := dec.Decode(raw); err != nil {
		return types.Configuration{}, ErrConfigDecode.Err(err)
	}

	cfg := types.Configuration{
		Environment: types.Environment(fc.Environment),
		AppIssuer:   fc.AppIssuer,
		AccessToken: fc.AccessToken,
		Theme:       types.Theme(fc.Theme),
		Language:    fc.Language,
		Flow:        types.NullableStringFrom(fc.Flow),
		FlowParams:  fc.FlowParams,
		Embedded:    true,
		LogSetting:  fc.LogSetting,
	}
	if fc.Embedded != nil {
		cfg.Embedded = *fc.Embedded
	}
	cfg.LogSetting.Level = types.LogLevel(strings.ToUpper(string(cfg.LogSetting.Level)))
	return cfg.WithDefaults(), nil
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

func expandTemplate(input []byte, dotEnvPath string) ([]byte, apperrors.Error) {
	env := map[string]string{}
	if fileEnv, err := godotenv.Read(dotEnvPath); err == nil {
		for k, val := range fileEnv {
			env[k] = val
		}
	}
	for _, e := range os.Environ() {
		if k, val, ok := strings.Cut(e, "="); ok {
			env[k] = val
		}
	}

	tmpl, err := template.New("config").Option("missingkey=error").Parse(string(input))
	if err != nil {
		return nil, ErrConfigTemplate.Err(err)
	}
	var out bytes.Buffer
	if err := tmpl.Execute(&out, templateContext{ENV: env}); err != nil {
		if m := missingKeyRegex.FindStringSubmatch(err.Error()); len(m) == 2 {
			return nil, ErrConfigMissingEnv.Msg("missing environment variable: " + m[1])
		}
		return nil, ErrConfigTemplate.Err(err)
	}
	return out.Bytes(), nil
}
