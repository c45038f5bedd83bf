// Package middleware provides cross-cutting HTTP middleware for the API
// router.
package middleware
