// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidc-rp/config"
	"github.com/hashicorp/oidc-rp/oidc"
	"github.com/hashicorp/oidc-rp/oidc/callback"
	"github.com/hashicorp/oidc-rp/storage/memory"
	"github.com/hashicorp/oidc-rp/storage/redis"
	goredis "github.com/redis/go-redis/v9"
)

const attemptExp = 2 * time.Minute

func main() {
	configPath := flag.String("config", "oidc.yaml", "path of the yaml config file")
	configID := flag.String("config-id", "", "id of the config to use, the first config when empty")
	envFile := flag.String("env-file", "", "optional .env file read before the config is expanded")
	port := flag.String("port", "8080", "port of the local callback listener")
	redisAddr := flag.String("redis", "", "address of a redis server to keep the session in, memory when empty")
	logoff := flag.Bool("logoff", false, "end the session at the provider after the login")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Parse()

	level := hclog.Info
	if *debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "oidc-cli",
		Level:  level,
		Output: os.Stderr,
	})

	var loadOpts []config.Option
	if *envFile != "" {
		loadOpts = append(loadOpts, config.WithEnvFiles(*envFile))
	}
	configs, err := config.Load(*configPath, loadOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n", err)
		return
	}
	cfg := configs[0]
	if *configID != "" {
		cfg = nil
		for _, c := range configs {
			if c.ConfigID == *configID {
				cfg = c
			}
		}
		if cfg == nil {
			fmt.Fprintf(os.Stderr, "config %q not found in %s\n\n", *configID, *configPath)
			return
		}
	}
	redirectURL := fmt.Sprintf("http://localhost:%s/callback", *port)
	cfg.RedirectURL = redirectURL
	cfg.PostLogoutRedirectURI = fmt.Sprintf("http://localhost:%s/", *port)
	if cfg.IsImplicitFlow() {
		cfg.CustomParamsAuthRequest.Set("response_mode", "form_post")
	}

	var s oidc.Storage = memory.New()
	if *redisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: *redisAddr})
		defer rdb.Close()
		rs, err := redis.New(rdb, redis.WithLogger(logger.Named("redis")))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n\n", err)
			return
		}
		s = rs
	}

	events := oidc.EventPublisherFunc(func(e oidc.Event) {
		logger.Debug("event", "type", e.Type, "config_id", e.ConfigID)
	})
	p, err := oidc.NewProvider(cfg, s,
		oidc.WithLogger(logger),
		oidc.WithEventPublisher(events),
		oidc.WithNavigator(oidc.NavigatorFunc(openURL)),
	)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	// handle ctrl-c while waiting for the callback
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt)
	defer signal.Stop(sigintCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	successFn, successCh := success()
	errorFn, failedCh := failed()

	reader := &callback.SingleProviderReader{Provider: p}
	var handler http.HandlerFunc
	if cfg.IsImplicitFlow() {
		handler, err = callback.Implicit(ctx, reader, successFn, errorFn)
	} else {
		handler, err = callback.AuthCode(ctx, reader, successFn, errorFn)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating callback handler: %s", err)
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", handler)
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(loggedOffHTML))
	})

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", *port))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	defer listener.Close()

	srvCh := make(chan error)
	go func() {
		err := http.Serve(listener, mux)
		if err != nil && err != http.ErrServerClosed {
			srvCh <- err
		}
	}()

	fmt.Fprintf(os.Stderr, "Complete the login via your OIDC provider.\n\n")
	if err := p.Authorize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error starting authorization: %s", err)
		return
	}

	// Wait for either the callback to finish, SIGINT to be received or up to 2 minutes
	select {
	case err := <-srvCh:
		fmt.Fprintf(os.Stderr, "server closed with error: %s", err.Error())
		return
	case cb := <-successCh:
		printResult(cb.AuthResult)
		printUserData(ctx, p)
	case err := <-failedCh:
		fmt.Fprintf(os.Stderr, "channel received error: %s", err)
		return
	case <-sigintCh:
		fmt.Fprintf(os.Stderr, "Interrupted")
		return
	case <-time.After(attemptExp):
		fmt.Fprintf(os.Stderr, "Timed out waiting for response from provider")
		return
	}

	if *logoff {
		err := p.Logoff(ctx, oidc.WithURLHandler(func(url string) {
			fmt.Fprintf(os.Stderr, "Ending the session at the provider:\n\n    %s\n\n", url)
			if err := openURL(ctx, url); err != nil {
				fmt.Fprintf(os.Stderr, "Error attempting to automatically open browser: '%s'.\n", err)
			}
		}))
		if err != nil {
			fmt.Fprintf(os.Stderr, "logoff failed: %s", err)
		}
	}
}

func success() (callback.SuccessResponseFunc, <-chan *oidc.CallbackContext) {
	doneCh := make(chan *oidc.CallbackContext, 1)
	return func(state string, cb *oidc.CallbackContext, w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(successHTML)); err != nil {
			fmt.Fprintf(os.Stderr, "error writing successful response: %s", err)
		}
		doneCh <- cb
	}, doneCh
}

func failed() (callback.ErrorResponseFunc, <-chan error) {
	const op = "failed"
	doneCh := make(chan error, 1)
	return func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		switch {
		case e != nil:
			responseErr = e
			w.WriteHeader(http.StatusInternalServerError)
		case r != nil:
			responseErr = fmt.Errorf("%s: callback error from oidc provider: %s: %s", op, r.Error, r.Description)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			responseErr = fmt.Errorf("%s: unknown error from callback", op)
			w.WriteHeader(http.StatusInternalServerError)
		}
		if _, err := w.Write([]byte(responseErr.Error())); err != nil {
			fmt.Fprintf(os.Stderr, "%s: error writing failed response: %s", op, err)
		}
		doneCh <- responseErr
	}, doneCh
}

type respToken struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	Scope        string
	Expiry       time.Time
}

// printResult prints the tokens in clear, since the oidc token types
// redact themselves.
func printResult(r *oidc.AuthResult) {
	const op = "printResult"
	if r == nil {
		fmt.Fprintf(os.Stderr, "%s: no tokens received", op)
		return
	}
	tokenData, err := json.MarshalIndent(respToken{
		IDToken:      string(r.IDToken),
		AccessToken:  string(r.AccessToken),
		RefreshToken: string(r.RefreshToken),
		Scope:        r.Scope,
		Expiry:       r.Expiry,
	}, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "channel received success.\nToken:%s\n", tokenData)

	if r.IDToken == "" {
		return
	}
	var claims map[string]interface{}
	if err := r.IDToken.Claims(&claims); err != nil {
		fmt.Fprintf(os.Stderr, "IDToken claims: error parsing: %s", err)
		return
	}
	if idData, err := json.MarshalIndent(claims, "", "    "); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
	} else {
		fmt.Fprintf(os.Stderr, "IDToken claims:%s\n", idData)
	}
}

func printUserData(ctx context.Context, p *oidc.Provider) {
	const op = "printUserData"
	data, err := p.UserData(ctx)
	if err == nil && data == nil {
		data, err = p.UserInfo(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: error getting UserInfo claims: %s", op, err)
		return
	}
	infoData, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "UserInfo claims:%s\n", infoData)
}

// openURL opens the url in the default browser.
func openURL(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	fmt.Fprintf(os.Stderr, "Launching browser to:\n\n    %s\n\n\n", url)
	return cmd.Start()
}
