// Package config provides YAML configuration loading and validation for the
// subtitle worker, with environment overrides for secrets.
package config
