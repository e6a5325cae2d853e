// Package config loads the ssotoken configuration.
//
// Configuration is layered, later sources overriding earlier ones:
//
//  1. Built-in defaults (GetDefaultConfig)
//  2. ~/.config/ssotoken/config.yaml, or the file passed with --config
//  3. A .env file in the working directory
//  4. SSOTOKEN_* environment variables
//
// Example config.yaml:
//
//	cacheDir: ~/.aws/sso/cache
//	callback:
//	  address: 127.0.0.1:8000
//	  path: /oauth/callback
//	  timeout: 10m
//	refreshWindow: 5m
//	encryption:
//	  keyFile: ~/.config/ssotoken/key
//	  required: true
//	logLevel: debug
//
// Nested keys map to environment variables by joining with underscores,
// for example SSOTOKEN_CALLBACK_TIMEOUT=2m or SSOTOKEN_ENCRYPTION_REQUIRED=true.
package config
