package kafka

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// CheckRequest asks a serving monitor to run one health-check cycle.
type CheckRequest struct {
	Endpoints      []string
	TimeoutSeconds int
}

func EncodeCheckRequest(r CheckRequest) (*structpb.Struct, error) {
	eps := make([]any, 0, len(r.Endpoints))
	for _, e := range r.Endpoints {
		eps = append(eps, e)
	}
	s, err := structpb.NewStruct(map[string]any{
		"endpoints":       eps,
		"timeout_seconds": r.TimeoutSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("encode check request: %w", err)
	}
	return s, nil
}

func DecodeCheckRequest(s *structpb.Struct) (CheckRequest, error) {
	var r CheckRequest
	if s == nil {
		return r, errors.New("empty check request")
	}
	fields := s.GetFields()
	if v, ok := fields["endpoints"]; ok {
		list := v.GetListValue()
		if list == nil {
			return r, errors.New("endpoints: expected a list")
		}
		for _, item := range list.GetValues() {
			str, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return r, errors.New("endpoints: expected strings")
			}
			r.Endpoints = append(r.Endpoints, str.StringValue)
		}
	}
	if v, ok := fields["timeout_seconds"]; ok {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return r, errors.New("timeout_seconds: expected a number")
		}
		r.TimeoutSeconds = int(num.NumberValue)
	}
	return r, nil
}

// CheckRequests publishes check requests for a serving monitor to pick up.
type CheckRequests struct {
	p *Producer
}

func NewCheckRequests(p *Producer) *CheckRequests { return &CheckRequests{p: p} }

func (c *CheckRequests) Publish(ctx context.Context, key string, r CheckRequest) error {
	msg, err := EncodeCheckRequest(r)
	if err != nil {
		return err
	}
	return c.p.PublishProto(ctx, []byte(key), msg)
}
