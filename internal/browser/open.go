package browser

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/fetch"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string // auto, chrome, agent-browser or static
	Chrome          ChromeOptions
	AgentBrowserBin string
	AgentBrowser    AgentBrowserOptions
	Static          *fetch.Options
}

// Open starts the configured backend. With BackendAuto it tries chrome, then
// agent-browser, then static, returning the first that starts.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Backend {
	case BackendChrome:
		return NewChromeDriver(ctx, opts.Chrome, logger.Named("chrome"))
	case BackendAgentBrowser:
		return openAgentBrowser(opts, logger)
	case BackendStatic:
		return NewStaticDriver(opts.Static, logger.Named("static")), nil
	case BackendAuto, "":
		chrome, err := NewChromeDriver(ctx, opts.Chrome, logger.Named("chrome"))
		if err == nil {
			return chrome, nil
		}
		logger.Warn("chrome backend unavailable, falling back", zap.Error(err))

		ab, err := openAgentBrowser(opts, logger)
		if err == nil {
			return ab, nil
		}
		logger.Warn("agent-browser backend unavailable, falling back", zap.Error(err))

		return NewStaticDriver(opts.Static, logger.Named("static")), nil
	default:
		return nil, &crawlerr.ValidationError{Field: "backend", Message: fmt.Sprintf("unknown backend %q", opts.Backend)}
	}
}

func openAgentBrowser(opts Options, logger *zap.Logger) (Driver, error) {
	bin, err := exec.LookPath(opts.AgentBrowserBin)
	if err != nil {
		return nil, &crawlerr.BackendError{
			Backend: BackendAgentBrowser,
			Message: fmt.Sprintf("binary %q not found", opts.AgentBrowserBin),
			Cause:   err,
		}
	}
	return NewAgentBrowserDriver(ExecRunner{Bin: bin}, opts.AgentBrowser, logger.Named("agent-browser")), nil
}
