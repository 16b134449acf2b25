// Package rest fetches snapshot sections from a JSON HTTP API.
package rest
