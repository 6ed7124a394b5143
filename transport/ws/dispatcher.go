/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ws

import (
	"encoding/json"
	"sync"

	"github.com/suparena/chainquery/transport"
)

// dispatcher delivers the notifications of one subscription in arrival order.
// push never blocks, so the read loop keeps serving responses while a NotifyFunc runs.
type dispatcher struct {
	notify transport.NotifyFunc

	mu    sync.Mutex
	queue []json.RawMessage

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newDispatcher(notify transport.NotifyFunc) *dispatcher {
	return &dispatcher{
		notify: notify,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) push(raw json.RawMessage) {
	d.mu.Lock()
	d.queue = append(d.queue, raw)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *dispatcher) next() (json.RawMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	raw := d.queue[0]
	d.queue = d.queue[1:]
	return raw, true
}

func (d *dispatcher) run() error {
	for {
		select {
		case <-d.done:
			return nil
		case <-d.wake:
		}
		for {
			select {
			case <-d.done:
				return nil
			default:
			}
			raw, ok := d.next()
			if !ok {
				break
			}
			d.notify(raw)
		}
	}
}
