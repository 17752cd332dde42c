package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Providers maps a service name to its API base URL. All listed services
// speak the same request/poll wire protocol; only the endpoint differs.
var Providers = map[string]string{
	"2captcha":  "http://2captcha.com",
	"rucaptcha": "http://rucaptcha.com",
	"capguru":   "http://api.cap.guru",
}

// ErrSolveTimeout is returned when the service never produced a token
// within the solve budget.
var ErrSolveTimeout = errors.New("challenge: solve timed out")

// errServiceRejected marks a terminal answer from the service, as opposed
// to a transient transport failure worth retrying.
var errServiceRejected = errors.New("challenge: service rejected task")

// apiResponse is the fixed internal schema shared by all providers.
type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

const notReady = "CAPCHA_NOT_READY"

// Solver submits challenges to an external solving service and polls for
// the token.
type Solver struct {
	client *resty.Client
	base   string
	key    string

	// PollInterval between result polls. Default: 5s.
	PollInterval time.Duration

	// SolveBudget bounds the total wait for a token. Default: 3m.
	SolveBudget time.Duration

	logger *slog.Logger
}

// NewSolver creates a Solver for the named service. Unknown service names
// fall back to the 2captcha endpoint, which defined the protocol.
func NewSolver(service, apiKey string, logger *slog.Logger) *Solver {
	base, ok := Providers[service]
	if !ok {
		base = Providers["2captcha"]
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		client:       resty.New().SetTimeout(30 * time.Second),
		base:         base,
		key:          apiKey,
		PollInterval: 5 * time.Second,
		SolveBudget:  3 * time.Minute,
		logger:       logger,
	}
}

// SetBaseURL overrides the provider endpoint. Used for self-hosted
// compatible services and in tests.
func (s *Solver) SetBaseURL(base string) { s.base = base }

// Solve submits the challenge parameters and polls until the service
// returns a token or the solve budget is spent.
func (s *Solver) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	taskID, err := s.submit(ctx, siteKey, pageURL)
	if err != nil {
		return "", err
	}
	s.logger.Info("challenge: solve task created", "task_id", taskID)

	deadline := time.Now().Add(s.SolveBudget)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.PollInterval):
		}
		if time.Now().After(deadline) {
			return "", ErrSolveTimeout
		}

		token, done, err := s.poll(ctx, taskID)
		if errors.Is(err, errServiceRejected) {
			return "", err
		}
		if err != nil {
			s.logger.Warn("challenge: poll failed", "error", err)
			continue
		}
		if done {
			return token, nil
		}
	}
}

func (s *Solver) submit(ctx context.Context, siteKey, pageURL string) (string, error) {
	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"key":       s.key,
			"method":    "userrecaptcha",
			"googlekey": siteKey,
			"pageurl":   pageURL,
			"json":      "1",
		}).
		SetResult(&out).
		Post(s.base + "/in.php")
	if err != nil {
		return "", fmt.Errorf("challenge: submit: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("challenge: submit: http %d", resp.StatusCode())
	}
	if out.Status != 1 {
		return "", fmt.Errorf("challenge: submit rejected: %s", out.Request)
	}
	return out.Request, nil
}

// poll asks for the task result. done is true only when a token arrived.
func (s *Solver) poll(ctx context.Context, taskID string) (token string, done bool, err error) {
	var out apiResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    s.key,
			"action": "get",
			"id":     taskID,
			"json":   "1",
		}).
		SetResult(&out).
		Get(s.base + "/res.php")
	if err != nil {
		return "", false, fmt.Errorf("challenge: poll: %w", err)
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("challenge: poll: http %d", resp.StatusCode())
	}

	if out.Status == 1 {
		return out.Request, true, nil
	}
	if out.Request == notReady {
		return "", false, nil
	}
	return "", false, fmt.Errorf("%w: %s", errServiceRejected, out.Request)
}
