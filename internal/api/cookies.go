package api

import (
	"encoding/json"
	"errors"
	"os"
	"regexp"
	"sync"

	"github.com/angelware-net/spectre/internal/util"
)

// authTokenRe extracts the websocket auth token from the login cookie string.
var authTokenRe = regexp.MustCompile(`auth=(authcookie_[\w-]+)`)

// ErrNoCookie is returned when no login cookie is stored or the stored value
// has no usable auth token. Login happens out of process; we only consume
// the cookie file it leaves behind.
var ErrNoCookie = errors.New("login cookie missing or invalid")

// CookieStore persists the raw login cookie string in a small JSON file
// (.cookies.dat) shared with the login flow.
type CookieStore struct {
	mu   sync.RWMutex
	path string
}

func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

type cookieFile struct {
	Cookies struct {
		Value string `json:"value"`
	} `json:"cookies"`
}

// Load returns the raw cookie string, or ErrNoCookie if none is stored.
func (c *CookieStore) Load() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return "", ErrNoCookie
	}
	if err != nil {
		return "", err
	}

	var f cookieFile
	if err := json.Unmarshal(b, &f); err != nil {
		return "", err
	}
	if f.Cookies.Value == "" {
		return "", ErrNoCookie
	}
	return f.Cookies.Value, nil
}

// Save stores the raw cookie string.
func (c *CookieStore) Save(cookies string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var f cookieFile
	f.Cookies.Value = cookies
	return util.WriteJSONFile(c.path, f)
}

// AuthToken extracts the authcookie token used for the pipeline handshake.
func (c *CookieStore) AuthToken() (string, error) {
	raw, err := c.Load()
	if err != nil {
		return "", err
	}
	m := authTokenRe.FindStringSubmatch(raw)
	if m == nil {
		return "", ErrNoCookie
	}
	return m[1], nil
}
