package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	configContents, err := afero.ReadFile(fs, filepath.Join(path, ConfigurationName))
	if err != nil {
		return nil, err
	}

	// Start from the defaults so older files pick up new settings.
	out := defaultConfig()
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", ConfigurationName)
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validating %s", ConfigurationName)
	}
	return out, nil
}

// Initialize writes the default configuration into dir if there isn't one
// already.
func Initialize(fs afero.Fs, dir string, logger logrus.FieldLogger) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, ConfigurationName)
	switch exists, err := afero.Exists(fs, path); {
	case err != nil:
		return err
	case exists:
		logger.WithField("path", path).Info("configuration already exists")
		return nil
	}

	if err := afero.WriteFile(fs, path, defaultConfigData, 0644); err != nil {
		return err
	}
	logger.WithField("path", path).Info("wrote default configuration")
	return nil
}
