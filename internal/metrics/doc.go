// Package metrics holds the Prometheus collectors shared by securechat
// components. A nil *Metrics is valid and records nothing.
package metrics
