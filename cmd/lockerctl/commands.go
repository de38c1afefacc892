package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/apperr"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"
	"gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/session"
)

var errNotSignedIn = errors.New("not signed in")

var commands map[string]command

func init() {
	commands = map[string]command{
		"whoami":   {summary: "show the signed-in user", run: whoami},
		"login":    {summary: "sign in with a phone id token or an e-mail code", run: login},
		"logout":   {summary: "sign out and forget stored tokens", run: logout},
		"lockers":  {summary: "list lockers", run: lockers},
		"locker":   {summary: "show one locker", run: showLocker},
		"boxes":    {summary: "list the boxes of a locker", run: boxes},
		"orders":   {summary: "list your orders", run: orders},
		"order":    {summary: "show one order", run: showOrder},
		"create":   {summary: "create an order at a locker", run: create},
		"confirm":  {summary: "confirm a reserved order after drop-off", run: confirm},
		"pin":      {summary: "look up an order by its pickup pin", run: pin},
		"promo":    {summary: "apply or remove a promotion code", run: promo},
		"checkout": {summary: "start payment for an order", run: checkout},
		"complete": {summary: "mark a picked-up order completed", run: complete},
		"cancel":   {summary: "cancel an order", run: cancel},
		"collect":  {summary: "partner: collect an order from its box", run: orderStep(stepCollect)},
		"process":  {summary: "partner: start processing an order", run: orderStep(stepProcess)},
		"ready":    {summary: "partner: mark an order ready", run: orderStep(stepReady)},
		"return":   {summary: "partner: put an order back into a box", run: returnOrder},
		"unlock":   {summary: "kiosk: open a box with a pin", run: unlock},
	}
}

// signedIn restores the stored session and fails when there is none.
func signedIn(ctx context.Context, e *env) error {
	if err := e.client.Session.Restore(ctx); err != nil {
		return err
	}
	if !e.client.Session.Snapshot().Authenticated() {
		return errNotSignedIn
	}
	return nil
}

func whoami(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	s := e.client.Session.Snapshot()
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	if s.User != nil {
		fmt.Fprintf(w, "id\t%d\n", s.User.ID)
	}
	fmt.Fprintf(w, "name\t%s\n", displayName(s.User))
	fmt.Fprintf(w, "role\t%s\n", s.Role())
	fmt.Fprintf(w, "home\t%s\n", session.InitialRoute(s))
	if !s.Expiry.IsZero() {
		fmt.Fprintf(w, "expires\t%s\n", s.Expiry.Local().Format(time.RFC3339))
	}
	return w.Flush()
}

func displayName(u *model.User) string {
	if u == nil {
		return "unknown"
	}
	if u.FullName != "" {
		return u.FullName
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Email != "" {
		return u.Email
	}
	return u.PhoneNumber
}

func login(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	idToken := flags.String("id-token", "", "phone sign-in id token")
	email := flags.String("email", "", "e-mail address to sign in with")
	otp := flags.String("otp", "", "code received by e-mail")
	firstName := flags.String("first-name", "", "first name, for new accounts")
	lastName := flags.String("last-name", "", "last name, for new accounts")
	birthday := flags.String("birthday", "", "birthday as YYYY-MM-DD, for new accounts")
	if err := flags.Parse(args); err != nil {
		return err
	}

	registration := model.CompleteRegistrationRequest{
		FirstName: *firstName,
		LastName:  *lastName,
		Birthday:  *birthday,
	}
	needRegistration := func() error {
		if registration.FirstName == "" || registration.LastName == "" || registration.Birthday == "" {
			return errors.New("this is a new account: pass --first-name, --last-name and --birthday")
		}
		return nil
	}

	var tokens model.Tokens
	switch {
	case *idToken != "":
		res, err := e.client.Auth.PhoneLogin(ctx, *idToken)
		if err != nil {
			return err
		}
		tokens = res.Tokens()
		if res.NewUser {
			if err := needRegistration(); err != nil {
				return err
			}
			registration.IDToken = *idToken
			if tokens, err = e.client.Auth.CompleteRegistration(ctx, registration); err != nil {
				return err
			}
		}

	case *email != "" && *otp == "":
		if err := e.client.Auth.SendEmailOTP(ctx, *email); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "A code was sent to %s. Run: lockerctl login --email %s --otp <code>\n", *email, *email)
		return nil

	case *email != "":
		res, err := e.client.Auth.VerifyEmailOTP(ctx, *email, *otp)
		if err != nil {
			return err
		}
		tokens = res.Tokens()
		if res.NewUser {
			if err := needRegistration(); err != nil {
				return err
			}
			registration.TempToken = res.TempToken
			if tokens, err = e.client.Auth.EmailCompleteRegistration(ctx, registration); err != nil {
				return err
			}
		}

	default:
		return errors.New("pass --id-token, or --email with or without --otp")
	}

	if err := e.client.Session.Login(ctx, tokens); err != nil {
		return err
	}
	s := e.client.Session.Snapshot()
	fmt.Fprintf(e.out, "Signed in as %s (%s)\n", displayName(s.User), s.Role())
	return nil
}

func logout(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	var authErr *apperr.AuthError
	if err := e.client.Session.Restore(ctx); err != nil && !errors.As(err, &authErr) {
		return err
	}
	if err := e.client.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Signed out")
	return nil
}

func lockers(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	storeID := flags.Int64("store", 0, "only lockers of this store")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	var list []model.Locker
	var err error
	if *storeID > 0 {
		list, err = e.client.API.LockersByStore(ctx, *storeID)
	} else {
		list, err = e.client.API.Lockers(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tSTATUS\tFREE")
	for _, l := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\n", l.ID, l.Name, l.Location, l.Status, l.AvailableBoxes, l.TotalBoxes)
	}
	return w.Flush()
}

func showLocker(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := int64Arg(flags, "locker id")
	if err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	l, err := e.client.API.Locker(ctx, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%d\n", l.ID)
	fmt.Fprintf(w, "name\t%s\n", l.Name)
	if l.Code != "" {
		fmt.Fprintf(w, "code\t%s\n", l.Code)
	}
	fmt.Fprintf(w, "location\t%s\n", l.Location)
	fmt.Fprintf(w, "status\t%s\n", l.Status)
	fmt.Fprintf(w, "free\t%d/%d\n", l.AvailableBoxes, l.TotalBoxes)
	return w.Flush()
}

func boxes(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	available := flags.Bool("available", false, "only boxes that can be reserved")
	if err := flags.Parse(args); err != nil {
		return err
	}
	lockerID, err := int64Arg(flags, "locker id")
	if err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	var list []model.Box
	if *available {
		list, err = e.client.API.AvailableBoxes(ctx, lockerID)
	} else {
		list, err = e.client.API.Boxes(ctx, lockerID)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNUMBER\tSIZE\tSTATUS")
	for _, b := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID, b.Number, b.Size, b.Status)
	}
	return w.Flush()
}

func orders(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	page := flags.Int("page", 0, "page number, from 0")
	size := flags.Int("size", 20, "orders per page")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	res, err := e.client.API.Orders(ctx, *page, *size)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tLOCKER\tTOTAL\tCREATED")
	for _, o := range res.Content {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", o.ID, o.Status, o.LockerID, o.Total, o.CreatedAt.Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if res.TotalPages > 1 {
		fmt.Fprintf(e.out, "page %d of %d\n", *page+1, res.TotalPages)
	}
	return nil
}

func showOrder(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	track := flags.Bool("track", false, "show tracking details and the next step")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := stringArg(flags, "order id")
	if err != nil {
		return err
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	if *track {
		t, err := e.client.API.OrderStatus(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "status\t%s\t%s\n", t.Status, t.StatusDescription)
		fmt.Fprintf(w, "locker\t%s %s\n", t.LockerName, t.LockerCode)
		fmt.Fprintf(w, "paid\t%t\n", t.IsPaid)
		if t.PinCode != "" {
			fmt.Fprintf(w, "pin\t%s\n", t.PinCode)
		}
		fmt.Fprintf(w, "next\t%s\n", t.NextAction)
		return w.Flush()
	}

	o, err := e.client.API.Order(ctx, id)
	if err != nil {
		return err
	}
	printOrder(w, o)
	return w.Flush()
}

func create(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	lockerID := flags.Int64("locker", 0, "locker to drop off at (required)")
	boxID := flags.Int64("box", 0, "a specific box, otherwise the locker picks one")
	kind := flags.String("type", string(model.OrderTypeLaundry), "LAUNDRY, STORAGE or STANDARD_DROPOFF")
	services := flags.Int64Slice("service", nil, "service id, may repeat")
	note := flags.String("note", "", "note for the partner")
	code := flags.String("promo", "", "promotion code")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *lockerID <= 0 {
		return errors.New("--locker is required")
	}
	t := model.OrderType(strings.ToUpper(*kind))
	switch t {
	case model.OrderTypeLaundry, model.OrderTypeStorage, model.OrderTypeStandardDropoff:
	default:
		return fmt.Errorf("unknown order type %q", *kind)
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	req := model.CreateOrderRequest{
		Type:         t,
		LockerID:     *lockerID,
		ServiceIDs:   *services,
		CustomerNote: *note,
		Promotion:    *code,
	}
	if *boxID > 0 {
		req.BoxID = boxID
	}
	o, err := e.client.API.CreateOrder(ctx, req)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	printOrder(w, o)
	return w.Flush()
}

// orderAction is an order transition that takes nothing but the id.
type orderAction func(ctx context.Context, e *env, id string) (*model.Order, error)

func simpleOrderCommand(action orderAction) func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	return func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
		if err := flags.Parse(args); err != nil {
			return err
		}
		id, err := stringArg(flags, "order id")
		if err != nil {
			return err
		}
		if err := signedIn(ctx, e); err != nil {
			return err
		}

		o, err := action(ctx, e, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Order %s is %s\n", o.ID, o.Status)
		return nil
	}
}

var (
	confirm = simpleOrderCommand(func(ctx context.Context, e *env, id string) (*model.Order, error) {
		return e.client.API.ConfirmOrder(ctx, id)
	})
	complete = simpleOrderCommand(func(ctx context.Context, e *env, id string) (*model.Order, error) {
		return e.client.API.CompleteOrder(ctx, id)
	})
)

func promo(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	code := flags.String("code", "", "promotion code to apply")
	remove := flags.Bool("remove", false, "drop the applied promotion")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := stringArg(flags, "order id")
	if err != nil {
		return err
	}
	if (*code == "") == !*remove {
		return errors.New("pass either --code or --remove")
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	var o *model.Order
	if *remove {
		o, err = e.client.API.RemovePromotion(ctx, id)
	} else {
		o, err = e.client.API.ApplyPromotion(ctx, id, strings.ToUpper(*code))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Order %s total is %d\n", o.ID, o.Total)
	return nil
}

func printOrder(w *tabwriter.Writer, o *model.Order) {
	fmt.Fprintf(w, "id\t%s\n", o.ID)
	fmt.Fprintf(w, "status\t%s\n", o.Status)
	fmt.Fprintf(w, "locker\t%d\n", o.LockerID)
	if o.BoxID != nil {
		fmt.Fprintf(w, "box\t%d\n", *o.BoxID)
	}
	fmt.Fprintf(w, "total\t%d\n", o.Total)
	if o.PaymentMethod != "" {
		fmt.Fprintf(w, "payment\t%s\n", o.PaymentMethod)
	}
	if o.CancellationReason != "" {
		fmt.Fprintf(w, "canceled\t%s\n", o.CancellationReason)
	}
}

func pin(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	code, err := stringArg(flags, "pin")
	if err != nil {
		return err
	}

	o, err := e.client.API.OrderByPin(ctx, code)
	if errors.Is(err, apperr.ErrNotFound) {
		return errors.New("no order for this pin")
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	printOrder(w, o)
	return w.Flush()
}

func checkout(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	method := flags.String("method", string(model.PaymentVNPay), "VNPAY, MOMO or CASH")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := stringArg(flags, "order id")
	if err != nil {
		return err
	}
	pm := model.PaymentMethod(strings.ToUpper(*method))
	if !pm.Valid() {
		return fmt.Errorf("unknown payment method %q", *method)
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	url, err := e.client.API.Checkout(ctx, id, pm)
	if err != nil {
		return err
	}
	if url == "" {
		fmt.Fprintln(e.out, "Payment recorded")
		return nil
	}
	fmt.Fprintf(e.out, "Complete the payment at:\n%s\n", url)
	return nil
}

func cancel(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
	reason := flags.String("reason", "", "why the order is cancelled (required)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	id, err := stringArg(flags, "order id")
	if err != nil {
		return err
	}
	if strings.TrimSpace(*reason) == "" {
		return errors.New("--reason is required")
	}
	if err := signedIn(ctx, e); err != nil {
		return err
	}

	o, err := e.client.API.CancelOrder(ctx, id, strings.TrimSpace(*reason))
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Order %s is %s\n", o.ID, o.Status)
	return nil
}

func stringArg(flags *pflag.FlagSet, name string) (string, error) {
	if flags.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument: %s", name)
	}
	return flags.Arg(0), nil
}

func int64Arg(flags *pflag.FlagSet, name string) (int64, error) {
	s, err := stringArg(flags, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}
