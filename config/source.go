package config

// Source indicates where a configuration value came from.
type Source string

// Configuration source constants.
const (
	// SourceDefault indicates the value is a built-in default.
	SourceDefault Source = "default"

	// SourceSystem indicates the value came from the system config
	// (/etc/backupflow/config.yaml).
	SourceSystem Source = "system"

	// SourceFile indicates the value came from the file named with --config.
	SourceFile Source = "file"

	// SourceEnv indicates the value came from an environment variable,
	// including variables loaded from a .env file.
	SourceEnv Source = "env"

	// SourceFlag indicates the value was set via command-line flag.
	SourceFlag Source = "flag"
)
