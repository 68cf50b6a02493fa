// Package config resolves backupflow settings from layered sources.
//
// Precedence, highest first:
//  1. Command-line flags
//  2. Environment variables (BACKUPFLOW_ prefix), after loading .env files
//  3. The file named with --config
//  4. The system file, /etc/backupflow/config.yaml
//  5. Built-in defaults
//
// # Basic Usage
//
//	resolver := config.NewResolver(config.ResolverConfig{
//	    EnvPrefix:  "BACKUPFLOW_",
//	    SystemPath: config.DefaultSystemPath,
//	    FilePath:   configFlag,
//	    EnvFiles:   []string{".env"},
//	    Defaults:   config.Defaults(),
//	    ValidKeys:  config.Keys,
//	})
//	resolved, err := resolver.ResolveWithFlags(flagValues)
//	settings, err := config.FromResolved(resolved)
//
// Each resolved value tracks where it came from, so "backupflow config" can
// show why a value is what it is. YAML lists are accepted for list keys
// (include_paths, exclude_paths, databases) and flattened to comma-separated
// form. Settings are validated with go-playground/validator; the schedule key
// must parse as a standard five-field cron expression.
package config
