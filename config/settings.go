package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Configuration keys.
const (
	KeyJob                 = "job"
	KeyHostname            = "hostname"
	KeyBackupDir           = "backup_dir"
	KeyLogDir              = "log_dir"
	KeyRetention           = "retention"
	KeyCompress            = "compress"
	KeyCompressLevel       = "compress_level"
	KeySortBy              = "sort_by"
	KeyIncludePaths        = "include_paths"
	KeyExcludePaths        = "exclude_paths"
	KeyDatabases           = "databases"
	KeyMariaDBDefaultsFile = "mariadb_defaults_file"
	KeyPGHost              = "pg_host"
	KeyPGUser              = "pg_user"
	KeyPGDSN               = "pg_dsn"
	KeyPGDiscover          = "pg_discover"
	KeyPGGlobals           = "pg_globals"
	KeyWebhookURL          = "webhook_url"
	KeyWebhookKind         = "webhook_kind"
	KeyWebhookText         = "webhook_text"
	KeyWebhookSecret       = "webhook_secret"
	KeyS3Endpoint          = "s3_endpoint"
	KeyS3Bucket            = "s3_bucket"
	KeyS3AccessKey         = "s3_access_key"
	KeyS3SecretKey         = "s3_secret_key"
	KeyS3UseSSL            = "s3_use_ssl"
	KeyS3Prefix            = "s3_prefix"
	KeyMetricsTextfile     = "metrics_textfile"
	KeySchedule            = "schedule"
	KeyLogLevel            = "log_level"
	KeyLogStderr           = "log_stderr"
)

// Keys lists every recognised configuration key.
var Keys = []string{
	KeyJob, KeyHostname, KeyBackupDir, KeyLogDir, KeyRetention, KeyCompress,
	KeyCompressLevel, KeySortBy, KeyIncludePaths, KeyExcludePaths, KeyDatabases,
	KeyMariaDBDefaultsFile, KeyPGHost, KeyPGUser, KeyPGDSN, KeyPGDiscover, KeyPGGlobals,
	KeyWebhookURL, KeyWebhookKind, KeyWebhookText, KeyWebhookSecret,
	KeyS3Endpoint, KeyS3Bucket, KeyS3AccessKey, KeyS3SecretKey, KeyS3UseSSL, KeyS3Prefix,
	KeyMetricsTextfile, KeySchedule, KeyLogLevel, KeyLogStderr,
}

// SecretKeys are masked when settings are printed.
var SecretKeys = []string{KeyPGDSN, KeyWebhookURL, KeyWebhookSecret, KeyS3SecretKey}

// Defaults returns the built-in default values.
func Defaults() map[string]string {
	return map[string]string{
		KeyJob:                 "postgresql",
		KeyBackupDir:           "/backup",
		KeyRetention:           "7",
		KeyCompressLevel:       "-1",
		KeySortBy:              "date",
		KeyMariaDBDefaultsFile: "~/.my.cnf",
		KeyPGHost:              "localhost",
		KeyPGUser:              "postgres",
		KeyPGGlobals:           "false",
		KeyWebhookKind:         "slack",
		KeyS3UseSSL:            "true",
		KeyS3Prefix:            "backups",
		KeyLogLevel:            "info",
		KeyLogStderr:           "false",
	}
}

// Settings is the typed, validated configuration of one backup job.
type Settings struct {
	Job          string   `validate:"oneof=directory mariadb postgresql"`
	Hostname     string   `validate:"required"`
	BackupDir    string   `validate:"required"`
	LogDir       string   `validate:"required"`
	Retention    int      `validate:"min=1"`
	Compress     bool     // Set for the database jobs unless overridden
	CompressLvl  int      `validate:"min=-1,max=9"`
	SortBy       string   `validate:"oneof=date mtime"`
	IncludePaths []string `validate:"required_if=Job directory,dive,required"`
	ExcludePaths []string
	Databases    []string `validate:"dive,required"`

	MariaDBDefaultsFile string
	PGHost              string `validate:"required_if=Job postgresql"`
	PGUser              string `validate:"required_if=Job postgresql"`
	PGDSN               string
	PGDiscover          bool
	PGGlobals           bool

	WebhookURL    string `validate:"omitempty,url"`
	WebhookKind   string `validate:"oneof=slack generic"`
	WebhookText   string
	WebhookSecret string

	S3Endpoint  string
	S3Bucket    string `validate:"required_with=S3Endpoint"`
	S3AccessKey string `validate:"required_with=S3Endpoint"`
	S3SecretKey string `validate:"required_with=S3Endpoint"`
	S3UseSSL    bool
	S3Prefix    string

	MetricsTextfile string
	Schedule        string `validate:"omitempty,cronspec"`
	LogLevel        string `validate:"oneof=debug info warn error"`
	LogStderr       bool
}

// UploadEnabled reports whether offsite upload is configured.
func (s Settings) UploadEnabled() bool {
	return s.S3Endpoint != ""
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator with the cronspec rule registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterValidation("cronspec", func(fl validator.FieldLevel) bool {
			_, err := cron.ParseStandard(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// FromResolved converts resolved string values into Settings and validates them.
func FromResolved(r *Resolved) (Settings, error) {
	p := parser{r: r}

	s := Settings{
		Job:          strings.ToLower(r.Get(KeyJob)),
		Hostname:     r.Get(KeyHostname),
		BackupDir:    r.Get(KeyBackupDir),
		LogDir:       r.Get(KeyLogDir),
		Retention:    p.intValue(KeyRetention),
		CompressLvl:  p.intValue(KeyCompressLevel),
		SortBy:       strings.ToLower(r.Get(KeySortBy)),
		IncludePaths: splitList(r.Get(KeyIncludePaths)),
		ExcludePaths: splitList(r.Get(KeyExcludePaths)),
		Databases:    splitList(r.Get(KeyDatabases)),

		MariaDBDefaultsFile: r.Get(KeyMariaDBDefaultsFile),
		PGHost:              r.Get(KeyPGHost),
		PGUser:              r.Get(KeyPGUser),
		PGDSN:               r.Get(KeyPGDSN),
		PGDiscover:          p.boolValue(KeyPGDiscover),
		PGGlobals:           p.boolValue(KeyPGGlobals),

		WebhookURL:    r.Get(KeyWebhookURL),
		WebhookKind:   strings.ToLower(r.Get(KeyWebhookKind)),
		WebhookText:   r.Get(KeyWebhookText),
		WebhookSecret: r.Get(KeyWebhookSecret),

		S3Endpoint:  r.Get(KeyS3Endpoint),
		S3Bucket:    r.Get(KeyS3Bucket),
		S3AccessKey: r.Get(KeyS3AccessKey),
		S3SecretKey: r.Get(KeyS3SecretKey),
		S3UseSSL:    p.boolValue(KeyS3UseSSL),
		S3Prefix:    r.Get(KeyS3Prefix),

		MetricsTextfile: r.Get(KeyMetricsTextfile),
		Schedule:        r.Get(KeySchedule),
		LogLevel:        strings.ToLower(r.Get(KeyLogLevel)),
		LogStderr:       p.boolValue(KeyLogStderr),
	}

	// Database dumps are compressed unless compress is set explicitly.
	if r.Get(KeyCompress) == "" {
		s.Compress = s.Job != "directory"
	} else {
		s.Compress = p.boolValue(KeyCompress)
	}

	// Logs live next to the backups unless log_dir says otherwise.
	if s.LogDir == "" && s.BackupDir != "" {
		s.LogDir = filepath.Join(s.BackupDir, "logs")
	}

	if s.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			s.Hostname = h
		}
	}

	if err := errors.Join(p.errs...); err != nil {
		return s, err
	}
	if err := Validator().Struct(s); err != nil {
		return s, describe(err)
	}
	return s, nil
}

// parser collects conversion errors so all bad values are reported at once.
type parser struct {
	r    *Resolved
	errs []error
}

func (p *parser) intValue(key string) int {
	v := strings.TrimSpace(p.r.Get(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a number (from %s)", key, v, p.r.Source(key)))
	}
	return n
}

func (p *parser) boolValue(key string) bool {
	v := strings.TrimSpace(p.r.Get(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not true or false (from %s)", key, v, p.r.Source(key)))
	}
	return b
}

// splitList splits a list value on commas and newlines. Spaces are kept so
// paths like "/srv/My Files" survive.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fieldKeys maps Settings field names to configuration keys for messages.
var fieldKeys = map[string]string{
	"Job": KeyJob, "Hostname": KeyHostname, "BackupDir": KeyBackupDir, "LogDir": KeyLogDir,
	"Retention": KeyRetention, "CompressLvl": KeyCompressLevel, "SortBy": KeySortBy,
	"IncludePaths": KeyIncludePaths, "Databases": KeyDatabases, "PGHost": KeyPGHost,
	"PGUser": KeyPGUser, "WebhookURL": KeyWebhookURL, "WebhookKind": KeyWebhookKind,
	"S3Bucket": KeyS3Bucket, "S3AccessKey": KeyS3AccessKey, "S3SecretKey": KeyS3SecretKey,
	"Schedule": KeySchedule, "LogLevel": KeyLogLevel,
}

// describe turns validator errors into one line per offending key.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		key := fieldKeys[fe.StructField()]
		if key == "" {
			key = fe.Field()
		}
		msgs = append(msgs, errors.New(fieldMessage(key, fe)))
	}
	return errors.Join(msgs...)
}

func fieldMessage(key string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("%s is required", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", key)
	case "cronspec":
		return fmt.Sprintf("%s must be a cron expression like \"0 3 * * *\"", key)
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

// Mask hides a secret value for display.
func Mask(key, value string) string {
	if value == "" || !contains(SecretKeys, key) {
		return value
	}
	return "********"
}
