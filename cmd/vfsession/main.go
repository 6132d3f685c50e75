package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veloflux/go-session/api"
	"github.com/veloflux/go-session/internal/config"
	"github.com/veloflux/go-session/session"
	"github.com/veloflux/go-session/storage"
	"github.com/veloflux/go-session/tenants"
	"github.com/veloflux/go-session/token"
)

const usage = `usage: vfsession <command> [args]

commands:
  login <email>       authenticate and persist the session (password read from stdin)
  logout              clear the persisted session
  whoami              show the current user and token claims
  refresh             renew the token once
  watch               hold the session open with background refresh (ctrl-c to stop)
  tenant [id]         show or switch the active tenant ("-" deselects)
  tenants             list tenants visible to the current user
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("vfsession failed")
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	c := config.New()

	store, closeStore, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	client := api.NewClient(c.GetAPIBaseURL(), api.WithCSRFProvider(api.NewCSRFProvider(store)))
	manager, err := session.NewManager(client, store,
		session.WithThrottlePolicy(c.GetMaxLoginAttempts(), c.GetLockoutWindow()))
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch args[0] {
	case "login":
		return login(ctx, manager, store, args[1:])
	case "logout":
		manager.Logout()
		fmt.Println("logged out")
		return nil
	case "whoami":
		return whoami(ctx, manager)
	case "refresh":
		return refresh(ctx, manager)
	case "watch":
		return watch(ctx, c, manager)
	case "tenant":
		return tenant(ctx, manager, store, args[1:])
	case "tenants":
		return listTenants(ctx, client, manager)
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func openStore(c config.Config) (storage.Store, func(), error) {
	file, err := storage.NewFile(filepath.Join(c.GetDataFolder(), "session.json"))
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := file.Close(); err != nil {
			log.Warn().Err(err).Msg("closing session store")
		}
	}

	passphrase := c.GetStorageKey()
	if passphrase == "" {
		return file, closeStore, nil
	}
	key := sha256.Sum256([]byte(passphrase))
	encrypted, err := storage.NewEncrypted(file, key[:])
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return encrypted, closeStore, nil
}

func login(ctx context.Context, manager *session.Manager, store storage.Store, args []string) error {
	if len(args) != 1 {
		return errors.New("login needs exactly one argument: the email address")
	}
	email := args[0]

	fmt.Fprintf(os.Stderr, "password for %s: ", email)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return errors.Wrap(err, "reading password")
	}
	password = strings.TrimRight(password, "\r\n")

	if err := manager.Login(ctx, email, password); err != nil {
		return err
	}

	user := manager.User()
	fmt.Printf("logged in as %s (%s)\n", user.FullName(), user.Email)

	selector, err := tenants.NewSelector(store)
	if err != nil {
		return err
	}
	defer selector.Close()
	if err := selector.Initialize(user); err != nil {
		return err
	}
	if id := selector.SelectedTenantID(); id != "" {
		fmt.Printf("active tenant: %s\n", id)
	}
	return nil
}

func whoami(ctx context.Context, manager *session.Manager) error {
	if err := manager.Hydrate(ctx); err != nil {
		return err
	}
	if !manager.Authenticated() {
		fmt.Println("not logged in")
		return nil
	}

	user := manager.User()
	fmt.Printf("%s (%s), tenant %s, role %s\n", user.FullName(), user.Email, user.TenantID, user.Role)

	claims, err := token.Introspect(manager.Token())
	if err != nil {
		log.Debug().Err(err).Msg("token is not a readable JWT")
		return nil
	}
	if claims.Exp != nil && *claims.Exp > 0 {
		fmt.Printf("token expires %s\n", time.Unix(*claims.Exp, 0).Format(time.RFC1123))
	}
	return nil
}

func refresh(ctx context.Context, manager *session.Manager) error {
	if err := manager.Hydrate(ctx); err != nil {
		return err
	}
	if ok := manager.RefreshToken(ctx); !ok {
		return errors.New("refresh failed, previous token kept")
	}
	fmt.Println("token refreshed")
	return nil
}

func watch(ctx context.Context, c config.Config, manager *session.Manager) error {
	if err := manager.Hydrate(ctx); err != nil {
		return err
	}
	if !manager.Authenticated() {
		return errors.New("not logged in")
	}

	displayAppname(c.GetAppName())
	refresher := manager.StartAutoRefresh(c.GetRefreshInterval())
	defer refresher.Stop()
	log.Info().Dur("interval", c.GetRefreshInterval()).Msg("holding session open")

	waitForStopSignal()
	return nil
}

func tenant(ctx context.Context, manager *session.Manager, store storage.Store, args []string) error {
	if err := manager.Hydrate(ctx); err != nil {
		return err
	}

	selector, err := tenants.NewSelector(store)
	if err != nil {
		return err
	}
	defer selector.Close()
	if err := selector.Initialize(manager.User()); err != nil {
		return err
	}

	if len(args) == 0 {
		if id := selector.SelectedTenantID(); id != "" {
			fmt.Println(id)
		} else {
			fmt.Println("no tenant selected")
		}
		return nil
	}

	id := args[0]
	if id == "-" {
		id = ""
	}
	if err := selector.Select(id); err != nil {
		return err
	}
	if id == "" {
		fmt.Println("tenant deselected")
	} else {
		fmt.Printf("active tenant: %s\n", id)
	}
	return nil
}

func listTenants(ctx context.Context, client *api.Client, manager *session.Manager) error {
	if err := manager.Hydrate(ctx); err != nil {
		return err
	}
	if !manager.Authenticated() {
		return errors.New("not logged in")
	}

	list, err := client.Tenants(ctx, manager.Token())
	if err != nil {
		return err
	}
	for _, t := range list {
		state := "active"
		if !t.Active {
			state = "inactive"
		}
		fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Plan, state)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
