// Package internaldefs holds the metric names, help strings and bucket
// boundaries shared by the exporters.
//
// Both the Prometheus and OTel exporters read these tables so that a counter
// keeps one name regardless of the backend.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
