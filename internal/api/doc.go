// Package api exposes the coordination components over HTTP: ledger
// balance and mutations, backup artifacts and periodic job status. It
// translates HTTP concerns into component calls and component errors into
// status codes.
package api
