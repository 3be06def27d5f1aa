// Package logging builds the log/slog logger shared by every component.
//
// Configured from the logging section of the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components derive children with With("component", name) and fall back to
// Discard when constructed without one. Tokens and the JWT secret are never
// logged.
package logging
