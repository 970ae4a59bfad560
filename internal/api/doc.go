// Package api is a typed client for the task scheduler's REST backend.
//
// Every method issues exactly one request. Mutations decode the
// {success, error?, task_id?} envelope; a body without success=true is a
// failure and surfaces as *APIError carrying the server's error string.
// Transport failures are returned wrapped with the operation name.
package api
