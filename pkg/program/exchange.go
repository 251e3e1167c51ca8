package program

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/switchbot/pkg/domain"
	"github.com/aretw0/switchbot/pkg/ports"
)

// question is one outstanding dialog. Its answer channel is buffered with room for
// exactly one label, so delivery never blocks and a second delivery cannot happen
// because the slot is cleared under the same lock.
type question struct {
	id        uint64
	dialog    domain.Dialog
	presenter ports.DialogPresenter
	answer    chan string
	abandoned chan struct{}
}

// Exchange suspends a running state until the operator answers a dialog.
// A program owns exactly one Exchange and therefore at most one pending question.
type Exchange struct {
	mu      sync.Mutex
	pending *question
	seq     uint64
}

// NewExchange creates an exchange with an empty slot.
func NewExchange() *Exchange {
	return &Exchange{}
}

// Ask records dialog as current, shows it on every client through presenter and
// waits until Answer delivers a label. There is no timeout. If ctx is cancelled
// or the question is abandoned, Ask returns ErrDialogCancelled and never an answer.
//
// Recording and showing happen under the exchange lock, as do clearing and
// closing, so observers always see show_dialog before the matching dialog_closed.
// The presenter must not call back into the exchange.
func (e *Exchange) Ask(ctx context.Context, presenter ports.DialogPresenter, dialog domain.Dialog) (string, error) {
	if err := dialog.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDialogCancelled, err)
	}

	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return "", domain.ErrDialogPending
	}
	e.seq++
	q := &question{
		id:        e.seq,
		dialog:    dialog.Clone(),
		presenter: presenter,
		answer:    make(chan string, 1),
		abandoned: make(chan struct{}),
	}
	if presenter != nil {
		if err := presenter.ShowDialog(ctx, q.dialog); err != nil {
			e.mu.Unlock()
			return "", fmt.Errorf("failed to present dialog: %w", err)
		}
	}
	e.pending = q
	e.mu.Unlock()

	select {
	case label := <-q.answer:
		return label, nil
	case <-q.abandoned:
		return "", domain.ErrDialogCancelled
	case <-ctx.Done():
		e.drop(q)
		return "", fmt.Errorf("%w: %v", domain.ErrDialogCancelled, ctx.Err())
	}
}

// Answer resumes the pending Ask with label. It reports false, and does nothing,
// when no question is outstanding (including when it was already answered).
// Membership of label in the dialog's buttons is not checked.
func (e *Exchange) Answer(label string) bool {
	e.mu.Lock()
	q := e.pending
	if q == nil {
		e.mu.Unlock()
		return false
	}
	e.pending = nil
	if q.presenter != nil {
		q.presenter.CloseDialog(label)
	}
	q.answer <- label
	e.mu.Unlock()
	return true
}

// Abandon clears the pending question and wakes its Ask with a cancellation.
// It reports whether a question was pending.
func (e *Exchange) Abandon() bool {
	e.mu.Lock()
	q := e.pending
	if q == nil {
		e.mu.Unlock()
		return false
	}
	e.pending = nil
	if q.presenter != nil {
		q.presenter.CloseDialog("")
	}
	close(q.abandoned)
	e.mu.Unlock()
	return true
}

// Current returns a copy of the pending dialog, or nil.
func (e *Exchange) Current() *domain.Dialog {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return nil
	}
	d := e.pending.dialog.Clone()
	return &d
}

// drop clears q if it is still the pending question.
func (e *Exchange) drop(q *question) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != q {
		return
	}
	e.pending = nil
	if q.presenter != nil {
		q.presenter.CloseDialog("")
	}
}
