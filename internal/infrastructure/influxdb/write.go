package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTopicValue records one bus topic update.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Points carry the topic as a tag, the parsed numeric value as the "value"
// field and the raw textual payload as the "raw" field, so dashboards can
// graph numeric topics and still inspect the original payloads.
//
// Parameters:
//   - topic: The data topic the value arrived on
//   - value: The numeric interpretation of the payload
//   - raw: The raw textual payload
func (c *Client) WriteTopicValue(topic string, value float64, raw string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"topic_value",
		map[string]string{
			"topic": topic,
		},
		map[string]interface{}{
			"value": value,
			"raw":   raw,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
