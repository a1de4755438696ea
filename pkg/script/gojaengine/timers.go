package gojaengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/flow-orchestra/pkg/script"
)

const scriptLogError = script.LogError

// timerRegistry tracks setTimeout/setInterval handles so Close can stop
// every outstanding timer and ticker instead of leaking goroutines past the
// engine's lifetime.
type timerRegistry struct {
	mu        sync.Mutex
	timers    map[int]*time.Timer
	tickers   map[int]*time.Ticker
	nextID    int
	stopChan  chan struct{}
	closeOnce sync.Once
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		timers:   make(map[int]*time.Timer),
		tickers:  make(map[int]*time.Ticker),
		nextID:   1,
		stopChan: make(chan struct{}),
	}
}

func (t *timerRegistry) close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for _, timer := range t.timers {
			timer.Stop()
		}
		t.timers = make(map[int]*time.Timer)
		for _, ticker := range t.tickers {
			ticker.Stop()
		}
		t.tickers = make(map[int]*time.Ticker)
		close(t.stopChan)
	})
}

func (e *Engine) setupTimers() {
	e.runtime.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(e.runtime.NewTypeError("setTimeout requires 2 arguments"))
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			panic(e.runtime.NewTypeError("first argument must be a function"))
		}
		delay := call.Arguments[1].ToInteger()

		timers := e.timers
		timers.mu.Lock()
		id := timers.nextID
		timers.nextID++
		timer := time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
			e.mu.Lock()
			_, err := callback(goja.Undefined())
			e.mu.Unlock()
			if err != nil {
				e.emitLog(scriptLogError, fmt.Sprintf("setTimeout callback error: %v", err))
			}
			timers.mu.Lock()
			delete(timers.timers, id)
			timers.mu.Unlock()
		})
		timers.timers[id] = timer
		timers.mu.Unlock()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		id := int(call.Arguments[0].ToInteger())
		timers := e.timers
		timers.mu.Lock()
		if timer, ok := timers.timers[id]; ok {
			timer.Stop()
			delete(timers.timers, id)
		}
		timers.mu.Unlock()
		return goja.Undefined()
	})

	e.runtime.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(e.runtime.NewTypeError("setInterval requires 2 arguments"))
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			panic(e.runtime.NewTypeError("first argument must be a function"))
		}
		interval := call.Arguments[1].ToInteger()

		timers := e.timers
		timers.mu.Lock()
		id := timers.nextID
		timers.nextID++
		ticker := time.NewTicker(time.Duration(interval) * time.Millisecond)
		timers.tickers[id] = ticker
		timers.mu.Unlock()

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-timers.stopChan:
					return
				case <-ticker.C:
					e.mu.Lock()
					_, err := callback(goja.Undefined())
					e.mu.Unlock()
					if err != nil {
						e.emitLog(scriptLogError, fmt.Sprintf("setInterval callback error: %v", err))
					}
				}
			}
		}()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		id := int(call.Arguments[0].ToInteger())
		timers := e.timers
		timers.mu.Lock()
		if ticker, ok := timers.tickers[id]; ok {
			ticker.Stop()
			delete(timers.tickers, id)
		}
		timers.mu.Unlock()
		return goja.Undefined()
	})
}
