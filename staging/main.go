package staging

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	hooksMu sync.Mutex
	hooks   []func(*Registry)
)

// Register adds a function that registers members with the artifact's
// registry. Generated registration files call it from init.
func Register(fn func(*Registry)) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	hooks = append(hooks, fn)
}

// Main is the body of the generated driver program. Every package that
// registered members has been initialized by the time it runs, so each
// variable initializer ran exactly once. Main serves one request and exits.
func Main() {
	hooksMu.Lock()
	fns := append([]func(*Registry){}, hooks...)
	hooksMu.Unlock()

	if err := serve(os.Getenv(EnvRequest), os.Getenv(EnvResult), fns); err != nil {
		fmt.Fprintln(os.Stderr, "bake driver:", err)
		os.Exit(2)
	}
}

func serve(reqPath, resPath string, fns []func(*Registry)) error {
	if reqPath == "" || resPath == "" {
		return errors.New("not started by the bake tool: " + EnvRequest + " and " + EnvResult + " must be set")
	}
	r := NewRegistry()
	for _, fn := range fns {
		fn(r)
	}
	req, err := ReadRequest(reqPath)
	if err != nil {
		return err
	}
	return WriteReport(resPath, Run(r, req))
}
