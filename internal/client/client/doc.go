// Package client talks to the KeyAuth HTTP API on behalf of the CLI.
//
// HTTPClient keeps the access token returned by Login and sends it as a bearer
// token on every later call. Requests are retried on transport failures and
// on 502/503/504 responses; other statuses are returned at once as *APIError,
// which unwraps to the matching sentinel from internal/common so callers can
// use errors.Is. A server that cannot be reached at all yields ErrUnavailable.
package client
