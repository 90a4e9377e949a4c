package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "traceparent", Value: []byte("old")}}}
	c := carrierFor(&msg)

	c.Set("traceparent", "new")
	c.Set("tracestate", "x=1")

	assert.Equal(t, "new", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}
