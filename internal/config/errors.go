package config

import "errors"

// ErrUnknownFormat is returned for config files that are neither .json nor
// .toml.
var ErrUnknownFormat = errors.New("unknown config file format")
