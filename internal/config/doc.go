// Package config loads, normalizes, and validates uploadr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FLICKR_UPLOADR_FILES_DIR,
// FLICKR_UPLOADR_TOKEN_DIR, FLICKR_API_KEY and FLICKR_SECRET environment
// fallbacks. The Config value is built once at startup and passed by pointer
// to every component; nothing mutates it after Load returns.
package config
