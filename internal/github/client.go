// Package github is the code-hosting collaborator: refs, file reads, commits
// and pull requests on one repository through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"

	"sigfix/internal/codectx"
	"sigfix/internal/logx"
)

var (
	ErrValidation = errors.New("github validation error")
	ErrNotFound   = errors.New("github resource not found")
)

// DefaultRetryDelays are the waits before each retry of a 5xx or network
// failure.
var DefaultRetryDelays = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}

type Client struct {
	gh          *gh.Client
	owner       string
	repo        string
	retryDelays []time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type ClientOption func(*Client) error

// WithBaseURL points the client at another API root, e.g. GitHub Enterprise
// or a test server.
func WithBaseURL(raw string) ClientOption {
	return func(c *Client) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid github base url: %w", err)
		}
		c.gh.BaseURL = u
		return nil
	}
}

func WithRetryDelays(delays ...time.Duration) ClientOption {
	return func(c *Client) error {
		c.retryDelays = delays
		return nil
	}
}

func NewClient(token, owner, repo string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(owner) == "" || strings.TrimSpace(repo) == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	client := gh.NewClient(&http.Client{Timeout: 60 * time.Second})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	c := &Client{
		gh:          client,
		owner:       owner,
		repo:        repo,
		retryDelays: DefaultRetryDelays,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) Repo() string { return c.owner + "/" + c.repo }

// GetRef returns the commit SHA at the tip of branch.
func (c *Client) GetRef(ctx context.Context, branch string) (string, error) {
	var ref *gh.Reference
	err := c.do(ctx, "get ref "+branch, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		ref, resp, err = c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
		return resp, err
	})
	if err != nil {
		return "", err
	}
	return ref.GetObject().GetSHA(), nil
}

func (c *Client) CreateRef(ctx context.Context, branch, fromSHA string) error {
	return c.do(ctx, "create ref "+branch, func() (*gh.Response, error) {
		_, resp, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &gh.Reference{
			Ref:    gh.Ptr("refs/heads/" + branch),
			Object: &gh.GitObject{SHA: gh.Ptr(fromSHA)},
		})
		return resp, err
	})
}

// ReadFile returns the UTF-8 content of path at ref.
func (c *Client) ReadFile(ctx context.Context, path, ref string) (string, error) {
	file, err := c.getContents(ctx, path, ref)
	if err != nil {
		return "", err
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return content, nil
}

func (c *Client) getContents(ctx context.Context, path, ref string) (*gh.RepositoryContent, error) {
	var file *gh.RepositoryContent
	err := c.do(ctx, "read "+path, func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		file, _, resp, err = c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
			&gh.RepositoryContentGetOptions{Ref: ref})
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return file, nil
}

// CommitFile writes content to path on branch, creating the file when it
// does not exist yet.
func (c *Client) CommitFile(ctx context.Context, path, content, branch, message string) error {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(message),
		Content: []byte(content),
		Branch:  gh.Ptr(branch),
	}
	existing, err := c.getContents(ctx, path, branch)
	switch {
	case err == nil:
		opts.SHA = gh.Ptr(existing.GetSHA())
		return c.do(ctx, "update "+path, func() (*gh.Response, error) {
			_, resp, err := c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
			return resp, err
		})
	case errors.Is(err, ErrNotFound):
		return c.do(ctx, "create "+path, func() (*gh.Response, error) {
			_, resp, err := c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
			return resp, err
		})
	default:
		return err
	}
}

type PullRequest struct {
	URL    string `json:"url"`
	Number int    `json:"number"`
}

func (c *Client) CreatePullRequest(ctx context.Context, branch, base, title, body string) (*PullRequest, error) {
	var pr *gh.PullRequest
	err := c.do(ctx, "create pull request", func() (*gh.Response, error) {
		var resp *gh.Response
		var err error
		pr, resp, err = c.gh.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
			Title: gh.Ptr(title),
			Head:  gh.Ptr(branch),
			Base:  gh.Ptr(base),
			Body:  gh.Ptr(body),
		})
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	return &PullRequest{URL: pr.GetHTMLURL(), Number: pr.GetNumber()}, nil
}

// do runs call, retrying server errors and transport failures with the
// configured delays. 422 and 404 map to ErrValidation and ErrNotFound.
func (c *Client) do(ctx context.Context, op string, call func() (*gh.Response, error)) error {
	for attempt := 0; ; attempt++ {
		resp, err := call()
		if err == nil {
			return nil
		}
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		switch {
		case status == http.StatusUnprocessableEntity:
			return fmt.Errorf("%s: %w: %s", op, ErrValidation, errorMessage(err))
		case status == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case status != 0 && status < 500:
			return fmt.Errorf("%s: API error %d: %s", op, status, errorMessage(err))
		}
		if ctx.Err() != nil || attempt >= len(c.retryDelays) {
			if status != 0 {
				return fmt.Errorf("%s: API error %d: %s", op, status, errorMessage(err))
			}
			return fmt.Errorf("%s: network error: %w", op, err)
		}
		delay := c.retryDelays[attempt]
		logx.Warningf("github %s failed (%s), retrying in %s", op, errorMessage(err), delay)
		if err := c.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
}

func errorMessage(err error) string {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Message != "" {
		return er.Message
	}
	return err.Error()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Source reads repository files at ref for the context builder.
func (c *Client) Source(ref string) codectx.FileSource {
	return refSource{client: c, ref: ref}
}

type refSource struct {
	client *Client
	ref    string
}

func (s refSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	content, err := s.client.ReadFile(ctx, path, s.ref)
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}
