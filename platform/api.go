package platform

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

func NewAPI(instance string, org string, username string, token string) (*API, error) {

	if instance == "" {
		return &API{}, fmt.Errorf("platform: configure your instance name with --instance")
	}
	if username == "" {
		return &API{}, fmt.Errorf("platform: configure your username with --auth-username")
	}
	if token == "" {
		return &API{}, fmt.Errorf("platform: auth token is empty, please check auth-token-cmd")
	}

	u, err := url.ParseRequestURI(
		fmt.Sprintf("https://%s.thoughtspot.cloud",
			instance,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("platform: couldn't parse REST API URL: %w", err)
	}

	a := &API{
		BaseURI:  u,
		Org:      org,
		token:    token,
		username: username,
	}
	a.Client = &http.Client{}

	return a, nil
}

type API struct {
	// Base URI of the instance, e.g. https://INSTANCE.thoughtspot.cloud
	BaseURI *url.URL

	// The org all calls operate in.  Empty means the instance default.
	Org string

	// An HTTP client - you can substitute VCR or whatnot.
	Client *http.Client

	// Deadline for each page of a listing sweep.  Zero means 10s.
	PageTimeout time.Duration

	// Auth info
	username, token string
}
