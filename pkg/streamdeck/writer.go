package streamdeck

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Writer is the per-device HID writer worker. The render pipeline hands it
// command batches; the worker applies them to the deck on its own goroutine
// so a slow USB write never blocks rendering.
//
// Batches queue in arrival order. A failed command is logged and the rest of
// its batch still applies; transient USB errors on one key should not blank
// the whole panel.
type Writer struct {
	deck Deck

	mu      sync.Mutex
	queue   chan []Command
	closed  bool
	stopped sync.WaitGroup
}

// NewWriter creates a writer for the deck. Call Start to spawn the worker.
func NewWriter(deck Deck) *Writer {
	return &Writer{
		deck:  deck,
		queue: make(chan []Command, 16),
	}
}

// Start spawns the worker goroutine.
func (w *Writer) Start() {
	w.stopped.Add(1)
	go func() {
		defer w.stopped.Done()
		for batch := range w.queue {
			w.apply(batch)
		}
	}()
}

// SendCommands enqueues a batch. Dropped silently after Close.
func (w *Writer) SendCommands(batch []Command) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.queue <- batch
}

// Close stops the worker after the queued batches drain.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.stopped.Wait()
}

func (w *Writer) apply(batch []Command) {
	for _, cmd := range batch {
		var err error
		switch c := cmd.(type) {
		case SetButtonImage:
			err = w.deck.SetImage(c.Key, c.Image)
		case ClearButtonImage:
			err = w.deck.ClearImage(c.Key)
		case SetBrightness:
			err = w.deck.SetBrightness(c.Brightness)
		}
		if err != nil {
			log.Warnf("deck %s: command failed: %v", w.deck.Serial(), err)
		}
	}
}
