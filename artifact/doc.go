// Package artifact names, verifies, compresses and rotates backup artifacts.
//
// Core types:
//   - Name: The dated file name of one artifact (host, date, suffix, extension)
//   - Entry: An artifact found on disk
//   - Rotator: Keeps the newest N artifacts of a set and deletes the rest
//   - RotationReport: Per-file outcome of a rotation
//
// Artifact names look like "db01_24-03-2025.sql.gz" or "web01-24-03-2025.tgz".
// A set is every file in a directory that parses as the same Name shape, so
// "db01_24-03-2025_globals.sql.gz" never counts toward the "db01_*.sql.gz" set.
//
// Example usage:
//
//	name := artifact.Name{Host: "db01", Date: time.Now(), Sep: "_", Ext: "sql"}
//	path := filepath.Join(dir, name.String())
//	if !artifact.Verify(path) {
//	    return errEmpty
//	}
//	gz, err := artifact.Compress(path, gzip.DefaultCompression)
//	report := artifact.NewRotator(7).Rotate(dir, name.WithExt("sql.gz"))
package artifact
