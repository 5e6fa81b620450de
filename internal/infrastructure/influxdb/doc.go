// Package influxdb provides time-series recording of bus topic values.
//
// Only the record daemon uses this package. It mirrors numeric data
// messages into an InfluxDB bucket for dashboards and retrospective
// debugging; it is purely observational and plays no part in daemon state,
// which lives exclusively in retained bus messages.
//
// Writes are batched and asynchronous; failures surface through the
// SetOnError callback and are logged, never fatal.
package influxdb
