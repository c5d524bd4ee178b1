// Package config defines configuration structures for the gridcore CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (GRIDCORE_ prefix)
//   - YAML configuration file
//
// Later sources override earlier ones: defaults, then the file, then the
// environment, then flags.
//
// # Example file
//
//	root: ./.minecraft
//	version: latest-release
//	source: mirror
//	mirror_base: https://bmclapi2.bangbang93.com
//	workers: 16
//	timeout: 10s
//	hash_buffer: 1MiB
//	log_level: debug
//	retry:
//	  attempts: 5
//	  delay: 200ms
//	  max_delay: 5s
package config
