package transport

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/dispatcher"
)

// Publisher hands a message to the transport for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, msg manufacture.Message) error
}

// Dispatcher is the consuming side of a transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg manufacture.Message) (dispatcher.Report, error)
}

// Envelope is the wire form of a message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps msg into an envelope.
func Encode(msg manufacture.Message) ([]byte, error) {
	if err := manufacture.ValidateMessage(msg); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryInternal, "encode message payload")
	}
	return json.Marshal(Envelope{Type: msg.Type(), Payload: payload})
}

// Decode parses an envelope into the message type it names.
func Decode(data []byte) (manufacture.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "decode envelope").
			WithTextCode(manufacture.ErrCodeValidation)
	}

	var msg manufacture.Message
	switch env.Type {
	case manufacture.PartMessageType:
		var m manufacture.PartMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, decodeError(env.Type, err)
		}
		msg = m
	case manufacture.ProductMessageType:
		var m manufacture.ProductMessage
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, decodeError(env.Type, err)
		}
		msg = m
	default:
		return nil, manufacture.NewError(manufacture.ErrValidation, fmt.Sprintf("unknown message type %q", env.Type), nil, map[string]any{
			"type": env.Type,
		})
	}

	if err := manufacture.ValidateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeError(msgType string, err error) error {
	return manufacture.NewError(manufacture.ErrValidation, "decode "+msgType+" payload", err, map[string]any{
		"type": msgType,
	})
}

// partitionKey keeps every message of one aggregate on one partition.
func partitionKey(msg manufacture.Message) string {
	if agg, ok := msg.(manufacture.Aggregated); ok {
		return agg.AggregateKey()
	}
	return msg.Type()
}
