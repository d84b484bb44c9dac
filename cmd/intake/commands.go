package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"customerIntake/internal/accounts"
	"customerIntake/internal/app"
	"customerIntake/internal/apperr"
	"customerIntake/internal/auth"
	"customerIntake/internal/config"
	"customerIntake/internal/dashboard"
	"customerIntake/internal/db"
	"customerIntake/internal/ledger"
	"customerIntake/models"
)

var errUsage = errors.New("invalid usage; run intake help")

func flagError(err error) error { return fmt.Errorf("%w: %w", errUsage, err) }

type cli struct {
	app *app.App
	out io.Writer
}

// credentials are the auth flags shared by every authenticated command.
type credentials struct {
	user, pass, token string
}

func newFlags(name string, cr *credentials) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if cr != nil {
		fs.StringVar(&cr.user, "u", "", "username")
		fs.StringVar(&cr.pass, "p", "", "password")
		fs.StringVar(&cr.token, "token", os.Getenv("INTAKE_TOKEN"), "session token from login")
	}
	return fs
}

func (c *cli) session(ctx context.Context, cr *credentials) (*auth.Session, error) {
	if cr.user != "" {
		sess, _, err := c.app.Login(ctx, cr.user, cr.pass)
		return sess, err
	}
	if cr.token != "" {
		return c.app.Resume(ctx, cr.token)
	}
	return nil, apperr.New(apperr.InvalidInput, "authenticate with -u/-p or -token")
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}
	switch args[0] {
	case "init":
		return c.initStore()
	case "login":
		return c.login(ctx, args[1:])
	case "whoami":
		return c.whoami(ctx, args[1:])
	case "stats":
		return c.stats(ctx, args[1:])
	case "user":
		switch sub {
		case "create":
			return c.userCreate(ctx, args[2:])
		case "list":
			return c.userList(ctx, args[2:])
		}
	case "customer":
		switch sub {
		case "submit":
			return c.customerSubmit(ctx, args[2:])
		case "list":
			return c.customerList(ctx, args[2:])
		case "show":
			return c.customerShow(ctx, args[2:])
		case "document":
			return c.customerDocument(ctx, args[2:])
		case "approve":
			return c.customerApprove(ctx, args[2:])
		case "pending":
			return c.customerPending(ctx, args[2:])
		case "delete":
			return c.customerDelete(ctx, args[2:])
		}
	case "dashboard":
		switch sub {
		case "show":
			return c.dashboardShow(ctx)
		case "set":
			return c.dashboardSet(ctx, args[2:])
		case "clear-image":
			return c.dashboardClearImage(ctx, args[2:])
		}
	case "db":
		switch sub {
		case "versions":
			return c.dbVersions()
		case "rollback":
			return c.dbRollback(ctx, args[2:])
		}
	}
	return errUsage
}

func (c *cli) initStore() error {
	cfg := c.app.Config
	where := cfg.Store.Path
	if cfg.Store.Backend == config.BackendSQLite {
		where = cfg.Store.SQLitePath
	}
	fmt.Fprintf(c.out, "store ready: %s (%s), admin account %q\n", where, cfg.Store.Backend, cfg.Bootstrap.AdminUsername)
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("login", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	_, tok, err := c.app.Login(ctx, cr.user, cr.pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, tok)
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("whoami", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s\t%s\t%s\n", sess.Username, sess.Role, strings.Join(sess.Branches, ","))
	return nil
}

func (c *cli) userCreate(ctx context.Context, args []string) error {
	var cr credentials
	var name, password, role, branches string
	fs := newFlags("user create", &cr)
	fs.StringVar(&name, "name", "", "new username")
	fs.StringVar(&password, "password", "", "new password")
	fs.StringVar(&role, "role", "", "AGM, area_manager or branch")
	fs.StringVar(&branches, "branches", "", "comma separated branch names")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return apperr.New(apperr.InvalidInput, "unknown role %q", role)
	}
	acc, err := c.app.Accounts.CreateAccount(ctx, sess, accounts.CreateAccountRequest{
		Username: name,
		Password: password,
		Role:     r,
		Branches: strings.Split(branches, ","),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created %s (%s) %s\n", acc.Username, acc.Role, strings.Join(acc.AssignedBranches, ","))
	return nil
}

func (c *cli) stats(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("stats", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	st, err := c.app.Ledger.Stats(ctx, sess)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "users\t%d\n", st.Users)
	fmt.Fprintf(w, "customers\t%d\n", st.Customers)
	fmt.Fprintf(w, "awaiting area manager\t%d\n", st.AwaitingAreaManager)
	fmt.Fprintf(w, "awaiting agm\t%d\n", st.AwaitingAGM)
	fmt.Fprintf(w, "approved\t%d\n", st.Approved)
	return w.Flush()
}

func (c *cli) userList(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("user list", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	list, err := c.app.Accounts.List(ctx, sess)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tBRANCHES\tCREATED BY\tCREATED AT")
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.Username, a.Role, strings.Join(a.AssignedBranches, ","),
			a.CreatedBy, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (c *cli) customerSubmit(ctx context.Context, args []string) error {
	var cr credentials
	var req ledger.SubmitRequest
	var doc string
	fs := newFlags("customer submit", &cr)
	fs.StringVar(&req.Name, "name", "", "customer name")
	fs.StringVar(&req.Phone, "phone", "", "10 digit phone number")
	fs.StringVar(&req.Aadhaar, "aadhaar", "", "12 digit aadhaar number")
	fs.StringVar(&req.Email, "email", "", "optional email")
	fs.StringVar(&doc, "doc", "", "path of the identity document")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	if doc != "" {
		data, err := os.ReadFile(doc)
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}
		req.Document = ledger.Document{Name: filepath.Base(doc), Data: data}
	}
	cust, err := c.app.Ledger.Submit(ctx, sess, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "submitted %s (branch %s)\n", cust.CustomerID, cust.Branch)
	return nil
}

func (c *cli) customerList(ctx context.Context, args []string) error {
	var cr credentials
	var search string
	fs := newFlags("customer list", &cr)
	fs.StringVar(&search, "q", "", "search name, ID or phone")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	seq, err := c.app.Ledger.List(ctx, sess, search)
	if err != nil {
		return err
	}
	w := customerTable(c.out)
	for cust := range seq {
		customerRow(w, &cust)
	}
	return w.Flush()
}

func customerTable(out io.Writer) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tBRANCH\tSTATUS\tSUBMITTED BY\tCREATED AT")
	return w
}

func customerRow(w io.Writer, c *models.Customer) {
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.CustomerID, c.Name, c.Phone, c.Branch, c.Status,
		c.SubmittedBy, c.CreatedAt.Format("2006-01-02 15:04"))
}

func idFlag(name string, cr *credentials, id *string) *flag.FlagSet {
	fs := newFlags(name, cr)
	fs.StringVar(id, "id", "", "customer ID")
	return fs
}

func (c *cli) customerShow(ctx context.Context, args []string) error {
	var cr credentials
	var id string
	if err := idFlag("customer show", &cr, &id).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	cust, err := c.app.Ledger.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\nName\t%s\nPhone\t%s\nAadhaar\t%s\nEmail\t%s\nBranch\t%s\nStatus\t%s\nSubmitted by\t%s\nDocument\t%s\n",
		cust.CustomerID, cust.Name, cust.Phone, cust.AadhaarNumber, cust.Email, cust.Branch, cust.Status,
		cust.SubmittedBy, cust.DocumentReference)
	for _, h := range cust.History {
		fmt.Fprintf(w, "History\t%s by %s at %s\n", h.Status, h.By, h.At.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func (c *cli) customerDocument(ctx context.Context, args []string) error {
	var cr credentials
	var id, out string
	fs := idFlag("customer document", &cr, &id)
	fs.StringVar(&out, "out", "", "file to write the document to")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	if out == "" {
		return apperr.New(apperr.InvalidInput, "-out is required")
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	data, err := c.app.Ledger.OpenDocument(ctx, sess, id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "wrote %d bytes to %s\n", len(data), out)
	return nil
}

func (c *cli) customerApprove(ctx context.Context, args []string) error {
	var cr credentials
	var id string
	if err := idFlag("customer approve", &cr, &id).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	cust, err := c.app.Approval.Approve(ctx, sess, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is now %s\n", cust.CustomerID, cust.Status)
	return nil
}

func (c *cli) customerPending(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("customer pending", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	list, err := c.app.Approval.Pending(ctx, sess)
	if err != nil {
		return err
	}
	w := customerTable(c.out)
	for _, cust := range list {
		customerRow(w, cust)
	}
	return w.Flush()
}

func (c *cli) customerDelete(ctx context.Context, args []string) error {
	var cr credentials
	var id string
	if err := idFlag("customer delete", &cr, &id).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	res, err := c.app.Ledger.Delete(ctx, sess, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "deleted %s\n", res.Customer.CustomerID)
	if res.DocumentErr != nil {
		fmt.Fprintf(c.out, "warning: document not removed: %v\n", res.DocumentErr)
	}
	return nil
}

func (c *cli) dashboardShow(ctx context.Context) error {
	d, err := c.app.Dashboard.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, d.WelcomeText)
	if d.ImageReference != nil {
		fmt.Fprintf(c.out, "image: %s\n", *d.ImageReference)
	}
	return nil
}

func (c *cli) dashboardSet(ctx context.Context, args []string) error {
	var cr credentials
	var text, image string
	fs := newFlags("dashboard set", &cr)
	fs.StringVar(&text, "text", "", "welcome text")
	fs.StringVar(&image, "image", "", "path of a new dashboard image")
	if err := fs.Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	var req dashboard.UpdateRequest
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "text" {
			req.Text = &text
		}
	})
	if image != "" {
		data, err := os.ReadFile(image)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		req.Image = &dashboard.Image{Name: filepath.Base(image), Data: data}
	}
	if req.Text == nil && req.Image == nil {
		return apperr.New(apperr.InvalidInput, "nothing to change; pass -text and/or -image")
	}
	if _, err := c.app.Dashboard.Update(ctx, sess, req); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "dashboard updated")
	return nil
}

func (c *cli) dashboardClearImage(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("dashboard clear-image", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	removed, err := c.app.Dashboard.DeleteImage(ctx, sess)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintln(c.out, "dashboard image removed")
	} else {
		fmt.Fprintln(c.out, "dashboard has no image")
	}
	return nil
}

func (c *cli) sqlite() error {
	if c.app.DB() == nil {
		return apperr.New(apperr.InvalidInput, "database commands need STORE_BACKEND=sqlite")
	}
	return nil
}

func (c *cli) dbVersions() error {
	if err := c.sqlite(); err != nil {
		return err
	}
	versions, err := db.AppliedVersions(c.app.DB())
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Fprintln(c.out, v)
	}
	return nil
}

// dbRollback reverts the newest migration. Admin only. Open migrates on every
// start, so the rollback lasts until the next invocation.
func (c *cli) dbRollback(ctx context.Context, args []string) error {
	var cr credentials
	if err := newFlags("db rollback", &cr).Parse(args); err != nil {
		return flagError(err)
	}
	if err := c.sqlite(); err != nil {
		return err
	}
	sess, err := c.session(ctx, &cr)
	if err != nil {
		return err
	}
	if sess.Role != models.RoleAdmin {
		return apperr.New(apperr.PermissionDenied, "only admin can roll back migrations")
	}
	v, err := db.RollbackLast(c.app.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "rolled back migration %d; it is reapplied the next time intake starts\n", v)
	return nil
}

// describe renders err for an operator. Unknown user and wrong password share
// one message.
func describe(err error) string {
	switch apperr.KindOf(err) {
	case apperr.UnknownUser, apperr.InvalidCredentials:
		return "invalid username or password"
	case apperr.Internal:
		return err.Error()
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Kind)), e.Message)
	}
	return err.Error()
}
