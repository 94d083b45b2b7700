package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Payload is a decoded event body. Events travel as protobuf Struct messages so
// producers and consumers only share field names, not generated types.
type Payload struct {
	fields *structpb.Struct
}

// PayloadBuilder accumulates event fields before encoding.
type PayloadBuilder struct {
	fields map[string]any
}

func NewPayload() *PayloadBuilder {
	return &PayloadBuilder{fields: make(map[string]any)}
}

func (b *PayloadBuilder) String(key, value string) *PayloadBuilder {
	b.fields[key] = value
	return b
}

func (b *PayloadBuilder) UUID(key string, value uuid.UUID) *PayloadBuilder {
	b.fields[key] = value.String()
	return b
}

// Int64 stores value as a protobuf number; cents stay exact below 2^53.
func (b *PayloadBuilder) Int64(key string, value int64) *PayloadBuilder {
	b.fields[key] = float64(value)
	return b
}

func (b *PayloadBuilder) Time(key string, value time.Time) *PayloadBuilder {
	b.fields[key] = value.UTC().Format(time.RFC3339Nano)
	return b
}

// Encode marshals the fields as a google.protobuf.Struct.
func (b *PayloadBuilder) Encode() ([]byte, error) {
	s, err := structpb.NewStruct(b.fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}
	body, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return body, nil
}

// DecodePayload parses a body produced by PayloadBuilder.Encode.
func DecodePayload(body []byte) (*Payload, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return &Payload{fields: &s}, nil
}

func (p *Payload) value(key string) (*structpb.Value, error) {
	v, ok := p.fields.GetFields()[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	return v, nil
}

func (p *Payload) String(key string) (string, error) {
	v, err := p.value(key)
	if err != nil {
		return "", err
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s.StringValue, nil
}

func (p *Payload) UUID(key string) (uuid.UUID, error) {
	s, err := p.String(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("field %q: %w", key, err)
	}
	return id, nil
}

func (p *Payload) Int64(key string) (int64, error) {
	v, err := p.value(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("field %q is not a number", key)
	}
	return int64(n.NumberValue), nil
}

func (p *Payload) Time(key string) (time.Time, error) {
	s, err := p.String(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", key, err)
	}
	return t, nil
}
