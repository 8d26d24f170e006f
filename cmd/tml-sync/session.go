/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"

	"github.com/toothbrush/tml-sync/platform"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

// newPlatformAPI runs the auth-token-cmd and builds a client from the
// root flags.
func newPlatformAPI() (*platform.API, error) {
	if len(AuthTokenCmd) < 1 {
		return nil, fmt.Errorf("session: please provide --auth-token-cmd")
	}

	tokenCmdOutput, err := exec.Command(AuthTokenCmd[0], AuthTokenCmd[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("session: couldn't execute auth-token-cmd '%v': %w", AuthTokenCmd, err)
	}

	token := strings.Split(string(tokenCmdOutput), "\n")[0]

	api, err := platform.NewAPI(Instance, Org, AuthUsername, token)
	if err != nil {
		return nil, fmt.Errorf("session: couldn't instantiate API: %w", err)
	}

	return api, nil
}

// verifyLogin asks the service who we are, to fail fast on bad auth.
func verifyLogin(ctx context.Context, api *platform.API) error {
	currentUser, err := api.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("session: couldn't query current user: %w", err)
	}

	fmt.Printf("Logged in to %s as '%s (%s)'...\n", api.BaseURI.Host, currentUser.DisplayName, currentUser.Username)
	return nil
}

// withVCR swaps the client's transport for a go-vcr recorder.  Call the
// returned stop function when done so the cassette gets flushed.
func withVCR(api *platform.API, cassetteName string) (func() error, error) {
	opts := &recorder.Options{
		CassetteName:       cassetteName,
		Mode:               recorder.ModeReplayWithNewEpisodes,
		SkipRequestLatency: true,
		RealTransport:      http.DefaultTransport,
	}
	r, err := recorder.NewWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("session: couldn't set up go-vcr recording: %w", err)
	}

	// Add a hook which removes Authorization headers from all requests
	hook := func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}
	r.AddHook(hook, recorder.AfterCaptureHook)
	r.SetReplayableInteractions(true)

	api.Client = r.GetDefaultClient()

	return r.Stop, nil
}
