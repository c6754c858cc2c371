package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/credentials/filerepo"
	"github.com/jrsteele09/go-admin-session/gateway"
	"github.com/jrsteele09/go-admin-session/internal/config"
	"github.com/jrsteele09/go-admin-session/internal/notify"
	"github.com/jrsteele09/go-admin-session/internal/storage"
	"github.com/jrsteele09/go-admin-session/miniprogram"
	"github.com/jrsteele09/go-admin-session/navigation"
	"github.com/jrsteele09/go-admin-session/sessions"
	"github.com/jrsteele09/go-admin-session/token"
)

type command func(ctx context.Context, c config.Config, args []string) error

var commands = map[string]command{
	"login":    loginCmd,
	"me":       meCmd,
	"menus":    menusCmd,
	"routes":   routesCmd,
	"status":   statusCmd,
	"refresh":  refreshCmd,
	"logout":   logoutCmd,
	"watch":    watchCmd,
	"mp-login": mpLoginCmd,
	"mp-me":    mpMeCmd,
}

// adminSession wires the admin stack: store, gateway, router and controller.
type adminSession struct {
	store  *storage.Store
	gw     *gateway.Gateway
	router *navigation.Router
	ctrl   *sessions.Controller
}

func openAdmin(ctx context.Context, c config.Config, views ...string) (*adminSession, error) {
	store, err := storage.Open(ctx, c, credentials.AdminKeys())
	if err != nil {
		return nil, err
	}
	gw, err := gateway.NewFromConfig(c, store, gateway.WithNotifier(notify.Logger{}), gateway.WithNavigator(notify.Logger{}))
	if err != nil {
		store.Close()
		return nil, err
	}
	router := navigation.NewRouter(views...)
	ctrl, err := sessions.New(gw, sessions.WithRouteResetter(router))
	if err != nil {
		store.Close()
		return nil, err
	}
	return &adminSession{store: store, gw: gw, router: router, ctrl: ctrl}, nil
}

func (s *adminSession) Close() {
	if err := s.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing credential store: %v\n", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loginCmd(ctx context.Context, c config.Config, args []string) error {
	flags := flag.NewFlagSet("login", flag.ContinueOnError)
	username := flags.String("u", "", "username")
	password := flags.String("p", "", "password")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return errors.New("login needs -u and -p")
	}

	s, err := openAdmin(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.ctrl.Login(ctx, *username, *password) {
		return errors.New("login failed")
	}
	id := s.ctrl.Snapshot()
	fmt.Printf("signed in as %s (%d permissions, %d menus)\n", id.User.DisplayName(), len(id.Permissions), len(id.Menus))
	return nil
}

func meCmd(ctx context.Context, c config.Config, _ []string) error {
	s, err := openAdmin(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.FetchUserInfo(ctx); err != nil {
		return err
	}
	return printJSON(s.ctrl.Snapshot().User)
}

func menusCmd(ctx context.Context, c config.Config, _ []string) error {
	s, err := openAdmin(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.FetchMenus(ctx); err != nil {
		return err
	}
	id := s.ctrl.Snapshot()
	printMenus(id.Menus, 0)
	fmt.Printf("\npermissions: %s\n", strings.Join(id.Permissions, ", "))
	return nil
}

func printMenus(nodes []sessions.MenuNode, depth int) {
	for _, n := range nodes {
		fmt.Printf("%s%s  %s", strings.Repeat("  ", depth), n.Meta.Title, n.Path)
		if n.Permission != "" {
			fmt.Printf("  [%s]", n.Permission)
		}
		fmt.Println()
		printMenus(n.Children, depth+1)
	}
}

func routesCmd(ctx context.Context, c config.Config, args []string) error {
	flags := flag.NewFlagSet("routes", flag.ContinueOnError)
	viewsDir := flags.String("views", "", "directory holding the view files")
	if err := flags.Parse(args); err != nil {
		return err
	}
	views, err := listViews(*viewsDir)
	if err != nil {
		return err
	}

	s, err := openAdmin(ctx, c, views...)
	if err != nil {
		return err
	}
	defer s.Close()

	decision := s.router.Guard(ctx, navigation.DashboardPath, true, s.ctrl)
	if decision.Notice != "" {
		return errors.New(decision.Notice)
	}
	for _, p := range s.router.Paths() {
		route, ok := s.router.Lookup(p)
		if !ok {
			fmt.Println(p)
			continue
		}
		fmt.Printf("%-40s %s\n", p, route.View)
	}
	return nil
}

// listViews returns the .vue files under dir relative to it.
func listViews(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	var views []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".vue" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		views = append(views, filepath.ToSlash(rel))
		return nil
	})
	return views, err
}

func statusCmd(ctx context.Context, c config.Config, _ []string) error {
	store, err := storage.Open(ctx, c, credentials.AdminKeys())
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("backend:   %s\n", store.Backend)
	fmt.Printf("signed in: %t\n", rec.Authenticated())
	describeToken("access", rec.AccessToken)
	describeToken("refresh", rec.RefreshToken)
	return nil
}

func describeToken(name, raw string) {
	if raw == "" {
		fmt.Printf("%-8s  none\n", name)
		return
	}
	claims, err := token.Inspect(raw)
	if err != nil {
		fmt.Printf("%-8s  opaque\n", name)
		return
	}
	now := time.Now()
	state := "valid for " + claims.ExpiresIn(now).Round(time.Second).String()
	if claims.Expired(now) {
		state = "expired"
	}
	fmt.Printf("%-8s  subject=%s %s\n", name, claims.Subject, state)
}

func refreshCmd(ctx context.Context, c config.Config, _ []string) error {
	s, err := openAdmin(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	accessToken, err := s.ctrl.Refresh(ctx)
	if err != nil {
		return err
	}
	if accessToken == "" {
		return errors.New("no refresh token stored")
	}
	describeToken("access", accessToken)
	return nil
}

func logoutCmd(ctx context.Context, c config.Config, _ []string) error {
	s, err := openAdmin(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	s.ctrl.Logout(ctx)
	fmt.Println("signed out")
	return nil
}

func watchCmd(ctx context.Context, c config.Config, _ []string) error {
	if c.GetCredentialBackend() != config.BackendFile {
		return fmt.Errorf("watch needs the file backend, not %q", c.GetCredentialBackend())
	}
	repo, err := filerepo.New(c.GetCredentialPath(), credentials.AdminKeys())
	if err != nil {
		return err
	}
	fmt.Printf("watching %s\n", repo.Path())
	return repo.Watch(ctx, func(rec credentials.Record) {
		fmt.Printf("%s signed in: %t\n", time.Now().Format(time.TimeOnly), rec.Authenticated())
	})
}

func openMiniProgram(ctx context.Context, c config.Config) (*miniprogram.Client, *storage.Store, error) {
	store, err := storage.Open(ctx, c, credentials.MiniProgramKeys())
	if err != nil {
		return nil, nil, err
	}
	client, err := miniprogram.NewFromConfig(c, store, notify.Logger{}, gateway.WithNotifier(notify.Logger{}))
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return client, store, nil
}

func mpLoginCmd(ctx context.Context, c config.Config, args []string) error {
	flags := flag.NewFlagSet("mp-login", flag.ContinueOnError)
	code := flags.String("code", "", "wx.login code")
	if err := flags.Parse(args); err != nil {
		return err
	}

	client, store, err := openMiniProgram(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := client.LoginByCode(ctx, *code)
	if err != nil {
		return err
	}
	fmt.Printf("signed in (new user: %t, phone binding needed: %t)\n", res.IsNewUser, res.NeedBindPhone)
	return nil
}

func mpMeCmd(ctx context.Context, c config.Config, _ []string) error {
	client, store, err := openMiniProgram(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	ok, err := client.Launch(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("not signed in")
	}
	u, err := client.UserInfo(ctx)
	if err != nil {
		return err
	}
	return printJSON(u)
}
