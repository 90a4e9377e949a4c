package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ErrUndecodable marks a message whose payload is not the expected proto type.
var ErrUndecodable = errors.New("kafka: undecodable message")

// ProtoHandler decodes each message into a fresh M before calling handle.
func ProtoHandler[M proto.Message](ctor func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := ctor()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("%w: %T: %v", ErrUndecodable, msg, err)
		}
		return handle(ctx, key, msg)
	}
}
