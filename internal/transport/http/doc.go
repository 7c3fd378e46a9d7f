// Package http contains the HTTP transport layer: chi route handlers for
// dataset uploads and report views, the websocket upgrade endpoint, and the
// session cookie plumbing that scopes report state to a browser.
package http
