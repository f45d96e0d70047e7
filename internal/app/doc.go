// Package app provides the application service layer.
//
// Orchestrates the submission pipeline: resolve sources, normalize both sides,
// match pairs, compute diffs, persist the session. Sits between HTTP handlers
// and domain repositories. Depends on domain interfaces, not concrete implementations.
package app
