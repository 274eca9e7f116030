// Package config holds the crawl configuration: defaults, the optional
// .torspider YAML file, environment overrides and validation.
//
// Values are applied in this order, later ones winning:
//
//	defaults < config file < environment (.env included) < command line flags
package config
