package latex

import (
	"context"
	"sync"

	"github.com/dgallion1/markchunk/internal/style"
)

// Task is an in-flight render. It resolves exactly once, to the chain's
// result or, when cancelled first, to the text fallback.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	once   sync.Once
	result Result

	fallback func(error) Result
}

// Start runs the render chain on a new goroutine.
func (r *Renderer) Start(ctx context.Context, src string, st *style.Style) *Task {
	if st == nil {
		st = style.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel:   cancel,
		done:     make(chan struct{}),
		fallback: func(err error) Result { return r.textFallback(src, st, err) },
	}
	go func() {
		res := r.Render(ctx, src, st)
		t.resolve(res)
	}()
	go func() {
		select {
		case <-t.done:
		case <-ctx.Done():
			t.resolve(t.fallback(ctx.Err()))
		}
	}()
	return t
}

func (t *Task) resolve(res Result) {
	t.once.Do(func() {
		t.result = res
		close(t.done)
		t.cancel()
	})
}

// Done is closed once the task has a result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task. A task that already finished keeps its result.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task resolves or ctx ends. When ctx ends first the
// task is cancelled and resolves to the text fallback.
func (t *Task) Wait(ctx context.Context) Result {
	select {
	case <-t.done:
	case <-ctx.Done():
		t.cancel()
		<-t.done
	}
	return t.result
}

// Result returns the result if the task is done.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}
