package closer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClose_LIFO(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) Func {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	c := NewCloser(0)
	c.Add("postgres", record("postgres"))
	c.Add("onnx", record("onnx"))
	c.AddFunc("http", func() { _ = record("http")(context.Background()) })
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"http", "onnx", "postgres"}, order)

	// повторный Close ничего не делает
	require.NoError(t, c.Close(context.Background()))
	assert.Len(t, order, 3)
}

func TestClose_CollectsErrorsWithNames(t *testing.T) {
	c := NewCloser(0)
	c.Add("kafka", func(context.Context) error { return errors.New("broker gone") })
	c.Add("redis", func(context.Context) error { return nil })

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: broker gone")
}

func TestClose_ForcedOnTimeout(t *testing.T) {
	c := NewCloser(100 * time.Millisecond)
	c.Add("slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown interrupted")
}
