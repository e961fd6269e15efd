package rpcserver

import (
	"regexp"
	"time"

	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/wire"
)

// handleGrep implements spec.md §4.2 Grep over the process's on-disk log
// file. Since/Until are absolute bounds; Last is a relative duration
// ("30m", "2h", "1d") measured back from now, mutually exclusive with
// Since/Until (spec.md §6 GrepRequest).
func (s *Server) handleGrep(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.GrepRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode GrepRequest: %s", err)
	}
	if req.Project == "" || req.Name == "" {
		return nil, wire.InvalidArgument("grep requires project and name")
	}
	if _, err := regexp.Compile(req.Pattern); err != nil {
		return nil, wire.InvalidArgument("invalid grep pattern %q: %s", req.Pattern, err)
	}

	opts := loghub.GrepOptions{
		Pattern:       req.Pattern,
		ContextBefore: req.ContextBefore,
		ContextAfter:  req.ContextAfter,
		MaxMatches:    req.MaxMatches,
	}
	if req.Last != "" {
		d, err := parseLastDuration(req.Last)
		if err != nil {
			return nil, wire.InvalidArgument("invalid last duration %q: %s", req.Last, err)
		}
		opts.Since = time.Now().Add(-d)
	} else {
		if req.SinceMillis != 0 {
			opts.Since = time.UnixMilli(req.SinceMillis)
		}
		if req.UntilMillis != 0 {
			opts.Until = time.UnixMilli(req.UntilMillis)
		}
	}

	path := s.registry.LogFilePath(req.Project, req.Name)
	matches, err := loghub.Grep(path, opts)
	if err != nil {
		// The pattern was already validated above, so any error here comes
		// from opening/reading the on-disk file (spec.md §7 NotFound).
		return nil, wire.NotFound("grep %s/%s: %s", req.Project, req.Name, err)
	}

	resp := wire.GrepResponse{Matches: make([]wire.GrepMatchMsg, len(matches))}
	for i, m := range matches {
		resp.Matches[i] = grepMatchToMsg(m)
	}
	return resp, nil
}

// parseLastDuration parses a single-suffix relative duration with a suffix
// of s/m/h/d (spec.md §6 GrepRequest.Last), extending time.ParseDuration
// with the day suffix it doesn't natively support.
func parseLastDuration(s string) (time.Duration, error) {
	if n := len(s); n > 1 && s[n-1] == 'd' {
		if d, err := time.ParseDuration(s[:n-1] + "h"); err == nil {
			return d * 24, nil
		}
	}
	return time.ParseDuration(s)
}
