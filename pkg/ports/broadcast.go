package ports

import (
	"context"

	"github.com/aretw0/switchbot/pkg/domain"
)

// Broadcaster pushes an event to every connected client.
// Implementations must not block the caller on slow clients.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// DialogPresenter shows and dismisses operator dialogs on the connected clients.
// Calls are made while the dialog exchange is locked, so implementations must
// return promptly and must not answer the dialog from inside the call.
type DialogPresenter interface {
	ShowDialog(ctx context.Context, dialog domain.Dialog) error
	CloseDialog(answer string)
}
