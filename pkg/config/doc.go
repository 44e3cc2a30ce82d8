// Package config loads the console configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML file, console.yaml in the working directory or in the user
//     config directory, or an explicit path
//  3. CONSOLE_ environment variables, one per key with dots replaced by
//     underscores (CONSOLE_API_BASE_URL, CONSOLE_SESSION_POLL_INTERVAL)
//
// The YAML file may reference environment variables with ${VAR_NAME}:
//
//	api:
//	  base_url: https://${CONSOLE_HOST}/api/
//	session:
//	  cookie_name: console_session
//	  poll_interval: 2s
//
// Save writes a configuration back as YAML; "console config init" uses it
// to create a starter file.
package config
