// Package app loads runtime configuration and assembles the dependency
// graph shared by the CLI and the daemon.
package app
