package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"sigs.k8s.io/yaml"
)

func TestDefaultProfile(t *testing.T) {
	rawProfile := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultProfileData, &rawProfile))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Profile{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawProfile[jsonField]; !ok {
			assert.False(t, true, "default profile missing field: %q", jsonField)
		}
	}

	for k := range rawProfile {
		_, ok := knownFields[k]
		assert.True(t, ok, "default profile contains invalid field: %q", k)
	}
}

func TestDefault(t *testing.T) {
	// Will panic() on load failure because it should never happen at
	// runtime.
	assert.NotNil(t, Default())
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Profile)
		wantErr bool
	}{
		{"stock", func(*Profile) {}, false},
		{"empty prompt", func(p *Profile) { p.Prompt = "" }, true},
		{"negative history", func(p *Profile) { p.HistorySize = -1 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.mutate(p)

			err := p.Validate()
			if tc.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}
