package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-admin-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: sessionctl [flags] <command> [args]

commands:
  login -u <username> -p <password>   sign in and store the tokens
  me                                  show the signed-in user
  menus                               show the menu tree
  routes [-views dir]                 show the routes projected from the menus
  status                              inspect the stored tokens
  refresh                             exchange the refresh token for a new access token
  logout                              sign out and clear the stored tokens
  watch                               report credential changes (file backend)
  mp-login -code <code>               mini-program code login
  mp-me                               show the mini-program profile
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Err(err).Msg("sessionctl failed")
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	fs := flag.NewFlagSet("sessionctl", flag.ContinueOnError)
	quiet := fs.Bool("q", false, "do not print the banner")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(c)
	if !*quiet {
		displayAppname(c.GetAppName())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", fs.Arg(0))
	}
	return cmd(ctx, c, fs.Args()[1:])
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(os.Stderr, myFigure.String())
}
