package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
)

type step int

const (
	stepCollect step = iota
	stepProcess
	stepReady
)

func orderStep(s step) func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	return simpleOrderCommand(func(ctx context.Context, e *env, id string) (*model.Order, error) {
		switch s {
		case stepCollect:
			return e.client.API.CollectOrder(ctx, id)
		case stepProcess:
			return e.client.API.ProcessOrder(ctx, id)
		default:
			return e.client.API.ReadyOrder(ctx, id)
		}
	})
}

func returnOrder(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	boxID := flags.Int64("box", 0, "box the order goes back into (required)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := stringArg(flags, "order id")
	if err != nil {
		return err
	}
	if *boxID <= 0 {
		return errors.New("--box is required")
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	o, err := e.client.API.ReturnOrder(ctx, id, *boxID)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Order %s is %s\n", o.ID, o.Status)
	return nil
}

// unlock talks to the kiosk endpoints, which need a pin instead of a session.
func unlock(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	boxID := flags.Int64("box", 0, "box to open (required)")
	lockerCode := flags.String("locker-code", "", "code printed on the locker")
	action := flags.String("action", string(model.UnlockPickup), "PICKUP or DROP_OFF")
	if err := flags.Parse(args); err != nil {
		return err
	}
	code, err := stringArg(flags, "pin")
	if err != nil {
		return err
	}
	if *boxID <= 0 {
		return errors.New("--box is required")
	}
	a := model.UnlockAction(strings.ToUpper(*action))
	if a != model.UnlockPickup && a != model.UnlockDropOff {
		return fmt.Errorf("unknown unlock action %q", *action)
	}

	check, err := e.client.API.VerifyPin(ctx, model.VerifyPinRequest{BoxID: *boxID, PinCode: code, LockerCode: *lockerCode})
	if err != nil {
		return err
	}
	if !check.Valid {
		if check.Message != "" {
			return errors.New(check.Message)
		}
		return errors.New("pin does not open this box")
	}

	res, err := e.client.API.UnlockBox(ctx, model.UnlockBoxRequest{
		BoxID:      *boxID,
		PinCode:    code,
		LockerCode: *lockerCode,
		ActionType: a,
	})
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("box %d did not open: %s", *boxID, res.Message)
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "box\t%d\n", res.BoxNumber)
	fmt.Fprintf(w, "order\t%d\n", res.OrderID)
	if res.Message != "" {
		fmt.Fprintf(w, "message\t%s\n", res.Message)
	}
	return w.Flush()
}
