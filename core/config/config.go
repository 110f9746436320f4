// Package config holds the shell profile: the host-tunable settings
// that are data rather than code.
package config

import (
	_ "embed"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

//go:embed default/profile.yaml
var defaultProfileData []byte

// ProfileName is the file name Load and Init use inside a profile
// directory.
const ProfileName = "profile.yaml"

// Profile is the serialized shell configuration.
type Profile struct {
	// Prompt is the interactive prompt template. \u, \h and \w expand
	// to user, host and working directory.
	Prompt string `json:"prompt" validate:"required"`

	// HistoryFile is where interactive history is persisted, relative
	// to the user's home directory. Empty disables persistence.
	HistoryFile string `json:"history_file"`

	// HistorySize caps the number of retained history entries.
	HistorySize int `json:"history_size" validate:"gte=0"`

	// StrictVars makes expansion of unset variables an error.
	StrictVars bool `json:"strict_vars"`

	// FailFast aborts the whole script on the first expansion error
	// instead of failing just the enclosing statement.
	FailFast bool `json:"fail_fast"`

	// Env is merged into the exported variables before evaluation.
	Env map[string]string `json:"env"`
}

// Validate the profile for basic semantic errors.
func (p *Profile) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(p)
}

// Default returns the embedded stock profile.
func Default() *Profile {
	var out Profile
	if err := yaml.UnmarshalStrict(defaultProfileData, &out); err != nil {
		panic(err)
	}
	return &out
}
