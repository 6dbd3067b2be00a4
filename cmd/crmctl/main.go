// Command crmctl is a command-line client for the CRM API. It keeps the
// session token in a YAML file between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bizdesk/crm-api/internal/client/api"
	"github.com/bizdesk/crm-api/internal/client/session"
	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/pkg/logger"
)

const defaultServer = "http://localhost:8080"

var errUsage = errors.New("usage")

type app struct {
	client  *api.Client
	session *session.Store
	out     io.Writer
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"register": {"create an account and sign in", runRegister},
	"login":    {"sign in with email and password", runLogin},
	"logout":   {"forget the stored session", runLogout},
	"status":   {"show the session state", runStatus},
	"me":       {"show the signed-in profile", runMe},
	"update":   {"update name, email or password", runUpdate},
	"stats":    {"show dashboard counters", runStats},
}

var commandOrder = []string{"register", "login", "logout", "status", "me", "update", "stats"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, out io.Writer) error {
	server := os.Getenv("CRM_SERVER")
	if server == "" {
		server = defaultServer
	}

	flagSet := pflag.NewFlagSet("crmctl", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&server, "server", server, "API base URL (env CRM_SERVER)")
	sessionFile := flagSet.String("session-file", session.FilePath(), "where the session token is stored")
	verbose := flagSet.BoolP("verbose", "v", false, "log debug output to stderr")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printUsage(flagSet)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage(flagSet)
		return errUsage
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, Pretty: true, Output: os.Stderr, NoCaller: true})

	client := api.New(server, nil)
	a := &app{
		client:  client,
		session: session.NewStore(session.NewFile(*sessionFile), client, log),
		out:     out,
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return nil
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: crmctl [flags] <command> [command flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, name := range commandOrder {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr, "\nFlags:")
	fmt.Fprint(os.Stderr, flagSet.FlagUsages())
}

func subcommand(name string) *pflag.FlagSet {
	return pflag.NewFlagSet("crmctl "+name, pflag.ContinueOnError)
}

func runRegister(ctx context.Context, a *app, args []string) error {
	var in api.RegisterInput
	flags := subcommand("register")
	flags.StringVar(&in.Email, "email", "", "account email")
	flags.StringVar(&in.Password, "password", "", "account password (env CRM_PASSWORD)")
	flags.StringVar(&in.Name, "name", "", "display name")
	flags.StringVar(&in.Role, "role", "", "admin, manager or employee")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if in.Password == "" {
		in.Password = os.Getenv("CRM_PASSWORD")
	}

	res, err := a.client.Register(ctx, in)
	if err != nil {
		return err
	}
	if err := a.session.SetSession(res.User, res.Token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Fprintf(a.out, "registered %s\n", res.User.Email)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	flags := subcommand("login")
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password (env CRM_PASSWORD)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("CRM_PASSWORD")
	}

	res, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := a.session.SetSession(res.User, res.Token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", res.User.Email, res.User.Role)
	return nil
}

func runLogout(_ context.Context, a *app, _ []string) error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func runStatus(ctx context.Context, a *app, _ []string) error {
	initErr := a.session.Initialize(ctx)
	snap := a.session.Snapshot()

	fmt.Fprintf(a.out, "status: %s\n", snap.Status)
	if snap.Profile != nil {
		printUser(a.out, snap.Profile)
	}
	if initErr != nil {
		fmt.Fprintf(a.out, "server unreachable: %v\n", initErr)
	}
	return nil
}

func runMe(ctx context.Context, a *app, _ []string) error {
	token, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	user, err := a.client.Me(ctx, token)
	if err != nil {
		return err
	}
	if err := a.session.SetProfile(user); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	printUser(a.out, user)
	return nil
}

func runUpdate(ctx context.Context, a *app, args []string) error {
	flags := subcommand("update")
	name := flags.String("name", "", "new display name")
	email := flags.String("email", "", "new email")
	password := flags.String("password", "", "new password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	fields := map[string]any{}
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "name":
			fields["name"] = *name
		case "email":
			fields["email"] = *email
		case "password":
			fields["password"] = *password
		}
	})
	if len(fields) == 0 {
		return errors.New("nothing to update: pass --name, --email or --password")
	}

	token, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	user, err := a.client.UpdateMe(ctx, token, fields)
	if err != nil {
		return err
	}
	if err := a.session.SetProfile(user); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	printUser(a.out, user)
	return nil
}

func runStats(ctx context.Context, a *app, _ []string) error {
	token, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	stats, err := a.client.DashboardStats(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "employees: %d\nclients:   %d\nprojects:  %d\nrevenue:   %.2f\n",
		stats.Employees, stats.Clients, stats.Projects, stats.Revenue)
	return nil
}

// requireSession restores the stored session and returns its token.
func (a *app) requireSession(ctx context.Context) (string, error) {
	if err := a.session.Initialize(ctx); err != nil {
		return "", err
	}
	if a.session.Snapshot().Status != session.Authenticated {
		return "", errors.New("not signed in: run crmctl login")
	}
	return a.session.Token(), nil
}

func printUser(w io.Writer, u *domain.User) {
	fmt.Fprintf(w, "id:    %s\nemail: %s\nname:  %s\nrole:  %s\n",
		u.ID, u.Email, strings.TrimSpace(u.Name), u.Role)
}
