// Package config loads and validates configuration for the gray-bus-tools
// daemons.
//
// Configuration flows from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (Defaults)
//  2. An optional YAML file
//  3. GRAYBUS_* environment variables
//
// Command line flags are applied by cmd/graybus on top of the loaded
// configuration, so a flag always wins over the file and the environment.
//
// The per-daemon sections under daemons: only hold topic conventions
// (specification suffixes, write suffixes, reset values); daemon behaviour
// itself is not configurable beyond those knobs.
package config
