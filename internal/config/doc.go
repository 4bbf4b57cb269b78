// Package config turns command-line flags and UPGRADE_HELPERS_* environment
// variables into validated settings for the upgrade helper commands.
//
// Flags are bound into a [viper.Viper] created by [New]; every key can also
// be supplied through the environment, for example
// UPGRADE_HELPERS_NAMESPACE or UPGRADE_HELPERS_ROLLOUT_TIMEOUT. Validation
// happens here, before any cluster call is made, and reports a
// [*ValidationError].
package config
