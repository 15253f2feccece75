// Package config manages chipset profiles and user preferences.
//
// A chipset profile bundles everything the protocol engines need to know
// about one chipset family: FDL1/FDL2 image paths and load addresses plus
// the post-bootstrap baud rate for Spreadtrum parts, and the Download Agent
// path and load address for MediaTek parts. The engines consume profiles
// read-only; ownership of the data stays here.
//
// Profiles come from two layers: built-ins compiled into the binary and a
// user YAML file in the platform config directory (~/.config/socflash on
// Unix-like systems). User profiles override built-ins key by key. Saves are
// atomic (write to a temp file, then rename) so a crash cannot corrupt the
// registry.
package config
