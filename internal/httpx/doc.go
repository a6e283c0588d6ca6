// Package httpx holds the HTTP helpers shared by the request gate and the
// auth endpoints: JSON bodies, client metadata and redirect sanitizing.
package httpx
