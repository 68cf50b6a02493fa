// Package dump produces backup artifacts by running external tools.
//
// A Job describes one kind of backup:
//   - Directory: tar archive of include paths (host-DD-MM-YYYY.tgz)
//   - MariaDB: mariadb-dump of listed or all databases (host_DD-MM-YYYY.sql)
//   - PostgreSQL: pg_dump per database or pg_dumpall, plus an optional
//     globals dump (host_DD-MM-YYYY_globals.sql)
//
// Every command is run through a command.Runner with an argument array;
// nothing is passed through a shell. Jobs never verify, compress or rotate;
// the pipeline does that with the Targets a job declares.
package dump
