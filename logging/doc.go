// Package logging builds the zap logger used by backup runs.
//
// Lines are written as
//
//	2025-03-04 03:00:01,123 - INFO - Dump complete	{"path": "/backup/db01_04-03-2025.sql"}
//
// to one file per day, <dir>/<prefix>_<YYYY-MM-DD>.log, with size-based
// rollover through lumberjack. The daily file switches when the date changes,
// so a long-running scheduler keeps writing into the right day's file.
package logging
