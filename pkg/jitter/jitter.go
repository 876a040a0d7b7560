// Package jitter предоставляет утилиты для добавления случайности в интервалы отступления (backoff),
// чтобы повторы разных запросов не совпадали по времени.
package jitter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

var (
	globalRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	randMutex  sync.Mutex
)

// Duration возвращает продолжительность с применённым джиттером.
// Результат находится в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	randMutex.Lock()
	f := globalRand.Float64()
	randMutex.Unlock()
	return scale(d, jitterFactor, f)
}

// DurationWithSeed то же, что Duration, но с заданным генератором.
func DurationWithSeed(d time.Duration, jitterFactor float64, rng *rand.Rand) time.Duration {
	return scale(d, jitterFactor, rng.Float64())
}

func scale(d time.Duration, jitterFactor, f float64) time.Duration {
	if d <= 0 || jitterFactor <= 0 {
		return max(d, 0)
	}
	return d + time.Duration(f*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет экспоненциальное отступление с джиттером.
// attempt — номер текущей попытки повтора (нумерация с нуля).
// Без джиттера задержка не превышает max.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			backoff = max
			break
		}
	}
	return Duration(backoff, jitterFactor)
}

// Sleep ждёт d или отмены контекста. Возвращает ctx.Err() при отмене.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
