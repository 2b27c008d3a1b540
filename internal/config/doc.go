// Package config loads the cloudsync configuration.
//
// Settings come from a YAML file read with viper, overridden by CLOUDSYNC_*
// environment variables (dots become underscores, lists are comma
// separated). The merged settings are unified with the #Config definition in
// schema.cue, which supplies every default and rejects unknown keys, wrong
// types and out-of-range values before anything is decoded.
package config
