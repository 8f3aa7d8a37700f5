package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	t.Run("执行全部任务", func(t *testing.T) {
		p := NewWorkerPool(4, 64, nil)
		p.Start(context.Background())

		var count atomic.Int32
		for i := 0; i < 50; i++ {
			assert.True(t, p.TrySubmit(func() { count.Add(1) }))
		}
		p.Stop()

		assert.Equal(t, int32(50), count.Load())
	})

	t.Run("panic 不影响后续任务", func(t *testing.T) {
		p := NewWorkerPool(1, 4, nil)
		p.Start(context.Background())

		var ran atomic.Bool
		assert.True(t, p.TrySubmit(func() { panic("boom") }))
		assert.True(t, p.TrySubmit(func() { ran.Store(true) }))
		p.Stop()

		assert.True(t, ran.Load())
	})

	t.Run("停止后拒绝任务", func(t *testing.T) {
		p := NewWorkerPool(1, 1, nil)
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		assert.False(t, p.TrySubmit(func() {}))
	})
}
