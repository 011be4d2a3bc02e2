// Package config provides configuration loading and validation for the silence analysis service.
// Settings come from a YAML file layered over Default, followed by .env and SILENCESENSE_*
// environment overrides for deployment-specific values.
package config
