// Package config holds the runtime settings for a retrieval run.
//
// Settings can be loaded from a JSON file, after which individual
// fields are typically overridden by command line flags. A missing
// config file is not an error; defaults are used instead.
package config
