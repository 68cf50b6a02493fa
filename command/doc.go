// Package command runs external tools with argument arrays, never through a shell.
//
// Core types:
//   - Cmd: Program, arguments, working directory and optional stdout redirection
//   - Runner: Interface for executing a Cmd
//   - ExecRunner: Runner backed by os/exec
//   - MockRunner: Scripted Runner for tests
//   - CommandError: Non-zero exit or start failure, with captured stderr
//
// Hostnames and paths are passed as discrete arguments, so shell
// metacharacters in them are never interpreted.
package command
