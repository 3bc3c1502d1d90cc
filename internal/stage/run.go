package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/roach88/bake/staging"
)

// Run executes the artifact once for req. A report carrying a Fault is
// returned without error; the caller decides what a fault means.
func (a *Artifact) Run(ctx context.Context, req *staging.Request) (*staging.Report, error) {
	reqPath := filepath.Join(a.work, "request.json")
	resPath := filepath.Join(a.work, "report.json")
	if err := staging.WriteRequest(reqPath, req); err != nil {
		return nil, err
	}
	if err := os.Remove(resPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove old report: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.Binary)
	cmd.Dir = a.Dir
	cmd.Env = append(append([]string{}, a.env...),
		staging.EnvRequest+"="+reqPath,
		staging.EnvResult+"="+resPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	rep, err := staging.ReadReport(resPath)
	if err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("%w: artifact failed: %v\n%s", ErrProtocol, runErr, out.Bytes())
		}
		return nil, fmt.Errorf("%w: artifact wrote no report: %v\n%s", ErrProtocol, err, out.Bytes())
	}
	if runErr != nil && rep.Fault == nil {
		return nil, fmt.Errorf("%w: artifact failed after reporting: %v\n%s", ErrProtocol, runErr, out.Bytes())
	}
	return rep, nil
}
