// Package observability builds the process logger and logs HTTP requests
// with their chi request ID.
package observability
