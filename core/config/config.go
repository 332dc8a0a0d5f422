package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	DefaultConfigDir  = ".bsh"
)

// Configuration controls the behavior of a shell.
type Configuration struct {
	History History `json:"history"`

	// JobControl enables process groups and terminal hand-off when the shell
	// is attached to a terminal.
	JobControl bool `json:"job_control"`

	// DisplayMessages prints informational messages like "exit".
	DisplayMessages bool `json:"display_messages"`

	ColorPrompt bool `json:"color_prompt"`

	LogLevel string `json:"log_level" validate:"oneof=panic fatal error warn info debug trace"`
}

type History struct {
	Enabled  bool   `json:"enabled"`
	Capacity int    `json:"capacity" validate:"gte=0"`
	File     string `json:"file" validate:"required_if=Enabled true"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Interactive returns the configuration for a shell reading from a terminal.
func Interactive() *Configuration {
	return defaultConfig()
}

// Noninteractive returns the configuration for scripts and -c: no history,
// no job control and no messages.
func Noninteractive() *Configuration {
	c := defaultConfig()
	c.History.Enabled = false
	c.JobControl = false
	c.DisplayMessages = false
	c.ColorPrompt = false
	return c
}

// Noninteractive derives the non-interactive variant of c, keeping its
// logging settings.
func (c *Configuration) Noninteractive() *Configuration {
	out := *c
	out.History.Enabled = false
	out.JobControl = false
	out.DisplayMessages = false
	out.ColorPrompt = false
	return &out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
