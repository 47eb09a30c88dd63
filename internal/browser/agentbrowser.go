// Package browser - agentbrowser.go drives the agent-browser CLI, one subprocess per operation.
package browser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
)

// AgentBrowserImageLimit bounds image lookups, each of which costs one subprocess round-trip.
const AgentBrowserImageLimit = 20

// waitGrace is added to the subprocess deadline on top of the page-side wait.
const waitGrace = 10 * time.Second

// Runner executes the agent-browser binary.
type Runner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs a binary on the local machine.
type ExecRunner struct {
	Bin string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// AgentBrowserOptions configures the CLI backend.
type AgentBrowserOptions struct {
	Session         string
	CommandTimeout  time.Duration
	PageLoadTimeout time.Duration
}

// AgentBrowserDriver is the lightweight automation backend.
type AgentBrowserDriver struct {
	runner Runner
	opts   AgentBrowserOptions
	logger *zap.Logger
}

// NewAgentBrowserDriver creates a driver that shells out through runner.
func NewAgentBrowserDriver(runner Runner, opts AgentBrowserOptions, logger *zap.Logger) *AgentBrowserDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Session == "" {
		opts.Session = "weixin_spider"
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 60 * time.Second
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	return &AgentBrowserDriver{runner: runner, opts: opts, logger: logger}
}

// Name implements Driver.
func (d *AgentBrowserDriver) Name() string { return BackendAgentBrowser }

// ImageLimit implements Driver.
func (d *AgentBrowserDriver) ImageLimit() int { return AgentBrowserImageLimit }

// envelope is the --json output wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// parseOutput extracts the data payload from CLI output, skipping any
// non-JSON lines the tool prints before its result.
func parseOutput(out []byte) (json.RawMessage, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}
	if json.Valid(out) {
		return unwrapEnvelope(out)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || (line[0] != '{' && line[0] != '[') {
			continue
		}
		if json.Valid(line) {
			return unwrapEnvelope(line)
		}
	}
	return nil, fmt.Errorf("no JSON in output: %.200s", out)
}

func unwrapEnvelope(raw []byte) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		// Arrays and scalars are payloads on their own.
		return json.RawMessage(raw), nil
	}
	if _, ok := probe["data"]; !ok {
		if _, ok := probe["success"]; !ok {
			return json.RawMessage(raw), nil
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "command reported failure"
		}
		return nil, errors.New(msg)
	}
	return env.Data, nil
}

// cmd runs one CLI command and returns its data payload.
func (d *AgentBrowserDriver) cmd(ctx context.Context, op string, timeout time.Duration, args ...string) (json.RawMessage, error) {
	full := append([]string{"--session", d.opts.Session, "--json"}, args...)

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d.logger.Debug("agent-browser command", zap.Strings("args", full))
	stdout, stderr, err := d.runner.Run(opCtx, full...)

	if errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &crawlerr.TimeoutError{Operation: op, Cause: opCtx.Err()}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = strings.TrimSpace(string(stdout))
		}
		if isTimeoutMessage(detail) {
			return nil, &crawlerr.TimeoutError{Operation: op, Cause: eris.Wrap(err, detail)}
		}
		return nil, &crawlerr.BackendError{
			Backend: BackendAgentBrowser,
			Message: op,
			Cause:   eris.Wrapf(err, "stderr: %.300s", detail),
		}
	}

	data, err := parseOutput(stdout)
	if err != nil {
		if isTimeoutMessage(err.Error()) {
			return nil, &crawlerr.TimeoutError{Operation: op, Cause: err}
		}
		return nil, &crawlerr.BackendError{
			Backend: BackendAgentBrowser,
			Message: op,
			Cause:   eris.Wrap(err, "unusable output"),
		}
	}
	return data, nil
}

func isTimeoutMessage(s string) bool {
	return strings.Contains(strings.ToLower(s), "timeout")
}

// isNotFoundMessage reports whether a failed query means the locator
// resolved to nothing rather than the browser breaking.
func isNotFoundMessage(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "not found") || strings.Contains(s, "no element") ||
		strings.Contains(s, "resolved to 0 elements")
}

// get runs a read-only query; a not-found failure maps to ErrNotFound.
func (d *AgentBrowserDriver) get(ctx context.Context, op string, args ...string) (json.RawMessage, error) {
	data, err := d.cmd(ctx, op, d.opts.CommandTimeout, append([]string{"get"}, args...)...)
	var backendErr *crawlerr.BackendError
	if errors.As(err, &backendErr) && isNotFoundMessage(err.Error()) {
		return nil, ErrNotFound
	}
	return data, err
}

// decodeField reads either {"<key>": value} or a bare value.
func decodeField[T any](data json.RawMessage, key string) (T, bool) {
	var zero T
	if len(data) == 0 || string(data) == "null" {
		return zero, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		raw, ok := obj[key]
		if !ok || string(raw) == "null" {
			return zero, false
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, false
		}
		return v, true
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Navigate implements Driver.
func (d *AgentBrowserDriver) Navigate(ctx context.Context, url string) error {
	_, err := d.cmd(ctx, "open", d.opts.PageLoadTimeout+waitGrace, "open", url)
	return err
}

// WaitFor implements Driver.
func (d *AgentBrowserDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := d.cmd(ctx, "wait for "+selector, timeout+waitGrace, "wait", selector)
	return err
}

func (d *AgentBrowserDriver) getString(ctx context.Context, key string, args ...string) (string, error) {
	data, err := d.get(ctx, "get "+args[0], args...)
	if err != nil {
		return "", err
	}
	s, ok := decodeField[string](data, key)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

// QueryText implements Driver.
func (d *AgentBrowserDriver) QueryText(ctx context.Context, selector string) (string, error) {
	return d.getString(ctx, "text", "text", selector)
}

// QueryHTML implements Driver.
func (d *AgentBrowserDriver) QueryHTML(ctx context.Context, selector string) (string, error) {
	return d.getString(ctx, "html", "html", selector)
}

// QueryAttribute implements Driver. The index-th match is addressed with a nth= locator.
func (d *AgentBrowserDriver) QueryAttribute(ctx context.Context, selector string, index int, attr string) (string, error) {
	s, err := d.getString(ctx, "value", "attr", fmt.Sprintf("%s >> nth=%d", selector, index), attr)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return s, err
}

// CountMatches implements Driver.
func (d *AgentBrowserDriver) CountMatches(ctx context.Context, selector string) (int, error) {
	data, err := d.get(ctx, "get count", "count", selector)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, ok := decodeField[int](data, "count")
	if !ok {
		return 0, nil
	}
	return n, nil
}

// Close ends the CLI session.
func (d *AgentBrowserDriver) Close() error {
	_, err := d.cmd(context.Background(), "close", 10*time.Second, "close")
	if err == nil {
		d.logger.Info("agent-browser session closed", zap.String("session", d.opts.Session))
	}
	return err
}
