// Package config loads the ini-format configuration file shared by the
// daemon and CLI commands: an optional server section, sync section,
// and client section, each independently optional depending on which
// command is running.
package config
