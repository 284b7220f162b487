package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"go.viam.com/iio/logging"
)

// Read reads a config from the given file, expanding ${VAR} references from the environment.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies where, if applicable, the file
// the reader originated from. Fields the document leaves out keep their Default values.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "cannot parse config %s", originalPath)
		}
		logger.Infow("config is empty, using defaults", "path", originalPath)
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	logger.Debugw("read config", "path", originalPath, "raw_mode", cfg.RawMode,
		"accel", cfg.Sensors.Accel.Name, "magn", cfg.Sensors.Magn.Name, "gyro", cfg.Sensors.Gyro.Name)
	return cfg, nil
}

// Write encodes cfg as YAML, e.g. to seed a config file from Default.
func Write(w io.Writer, cfg *Config) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return err
	}
	return encoder.Close()
}
