// Package cache persists SSO tokens as one JSON file per token identifier
// and watches the cache directory for records changed by other processes.
//
// The record layout is shared with other AWS SSO tooling:
//
//	~/.aws/sso/cache/<token id>.json
//
// SECURITY: records hold live credentials. Files are written 0600 inside a
// 0700 directory and token values are never logged.
package cache
