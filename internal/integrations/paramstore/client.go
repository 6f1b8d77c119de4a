package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// ErrNotFound reports a parameter that does not exist. Callers use it to fall
// back to built-in defaults for optional parameters.
var ErrNotFound = errors.New("parameter not found")

type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is satisfied by both Client and FileClient.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type cached struct {
	value   string
	missing bool
	expires time.Time
}

// Client reads SecureString and String parameters from SSM. With a cache TTL
// set, values (and not-found results) are reused until they expire so warm
// Lambda invocations skip the SSM round trip.
type Client struct {
	api ssmAPI
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

type Option func(*Client)

// WithCacheTTL keeps fetched values for d. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) { c.ttl = d }
}

func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api, now: time.Now, cache: map[string]cached{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl < 0 {
		return nil, errors.New("paramstore: cache TTL must not be negative")
	}
	return c, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	if v, ok, missing := c.lookup(name); ok {
		if missing {
			return "", fmt.Errorf("paramstore: get parameter %q: %w", name, ErrNotFound)
		}
		return v, nil
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *types.ParameterNotFound
		if errors.As(err, &nf) {
			c.store(name, cached{missing: true})
			return "", fmt.Errorf("paramstore: get parameter %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	v := *out.Parameter.Value
	c.store(name, cached{value: v})
	return v, nil
}

func (c *Client) lookup(name string) (value string, ok, missing bool) {
	if c.ttl == 0 {
		return "", false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[name]
	if !ok || !c.now().Before(e.expires) {
		delete(c.cache, name)
		return "", false, false
	}
	return e.value, true, e.missing
}

func (c *Client) store(name string, e cached) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = map[string]cached{}
	}
	e.expires = c.now().Add(c.ttl)
	c.cache[name] = e
}
