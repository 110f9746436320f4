package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load reads and validates a profile. Accepts either the profile file
// itself or the directory containing it.
func Load(fsys afero.Fs, path string) (*Profile, error) {
	if base := filepath.Base(path); base != ProfileName {
		path = filepath.Join(path, ProfileName)
	}

	contents, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	var out Profile
	if err := yaml.UnmarshalStrict(contents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Init writes the stock profile into dir. It refuses to clobber an
// existing profile.
func Init(fsys afero.Fs, dir string) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, ProfileName)
	if _, err := fsys.Stat(path); err == nil {
		return os.ErrExist
	}

	return afero.WriteFile(fsys, path, defaultProfileData, 0644)
}
