package order

import (
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusInitialized: {model.StatusReserved, model.StatusCanceled},
	model.StatusReserved:    {model.StatusWaiting, model.StatusCanceled},
	model.StatusWaiting:     {model.StatusCollected, model.StatusCanceled},
	model.StatusCollected:   {model.StatusProcessing, model.StatusCanceled},
	model.StatusProcessing:  {model.StatusReady, model.StatusCanceled},
	model.StatusReady:       {model.StatusReturned, model.StatusCompleted, model.StatusCanceled},
}

func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition reports a finished order as *apperr.TerminalStateError and
// any other edge missing from the table as *apperr.InvalidTransitionError.
func checkTransition(o *model.Order, to model.OrderStatus) error {
	if o.Status.IsTerminal() {
		return &apperr.TerminalStateError{OrderID: o.ID, Status: string(o.Status)}
	}
	if !CanTransition(o.Status, to) {
		return &apperr.InvalidTransitionError{From: string(o.Status), To: string(to)}
	}
	return nil
}
