package http

import (
	"context"
	"time"

	"github.com/DRSN-tech/image-fingerprint/pkg/e"
)

type result[T any] struct {
	val T
	err error
}

// raceDeadline запускает fn в отдельной горутине и ждёт не дольше timeout.
// Инференс не прерывается: fn получает контекст без отмены, а проигравший результат отбрасывается.
// timeout <= 0 отключает ограничение.
func raceDeadline[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		return fn(ctx)
	}

	// буфер 1: горутина не блокируется, если её результат уже никто не ждёт
	done := make(chan result[T], 1)
	go func() {
		val, err := fn(context.WithoutCancel(ctx))
		done <- result[T]{val: val, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		return zero, e.ErrExtractionTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
