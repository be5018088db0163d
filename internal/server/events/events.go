// Package events dispatches object lifecycle notifications to registered
// hooks once the originating transaction has committed.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/artivault/internal/logging"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

type Kind string

const (
	Created    Kind = "created"
	Reuploaded Kind = "reuploaded"
)

type Event struct {
	Kind   Kind
	Object models.Object
}

// Handler reacts to an event. Errors are logged and otherwise ignored.
type Handler func(ctx context.Context, e Event) error

type Dispatcher struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   logging.Logger
}

func NewDispatcher(logger logging.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With("module", "events")}
}

func (d *Dispatcher) Subscribe(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Publish runs every handler in registration order. A failing or panicking
// handler does not stop the others.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := d.run(ctx, h, e); err != nil {
			d.logger.Error(ctx, "event hook failed",
				"kind", string(e.Kind), "type", string(e.Object.Type), "dhash", e.Object.DHash, "error", err)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panic: %v", p)
		}
	}()
	return h(ctx, e)
}

// LogHandler records every event at info level.
func LogHandler(logger logging.Logger) Handler {
	return func(ctx context.Context, e Event) error {
		logger.Info(ctx, "object "+string(e.Kind), "type", string(e.Object.Type), "dhash", e.Object.DHash)
		return nil
	}
}
