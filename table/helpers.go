package table

import (
	"context"

	"github.com/outerbridge/tcgstorage/session"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// GetColumn reads a single column of object. A column the peripheral's
// response leaves out is unset: GetColumn returns the Empty Value and a
// nil error for it.
func GetColumn(ctx context.Context, s *session.Session, object uid.UID, col uint32) (stream.Value, error) {
	cells, err := s.Get(ctx, object, col, col)
	if err != nil {
		return stream.Value{}, err
	}
	for _, c := range cells {
		if c.Column == col {
			return c.Value, nil
		}
	}
	return stream.Value{}, nil
}

// SetColumn writes a single column of object.
func SetColumn(ctx context.Context, s *session.Session, object uid.UID, col uint32, v stream.Value) error {
	return s.Set(ctx, object, []session.Cell{{Column: col, Value: v}})
}
