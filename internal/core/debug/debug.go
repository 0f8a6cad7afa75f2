// Package debug contains optional utilities for inspecting a running
// server.
package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/sirupsen/logrus"
)

// StartPprofServer spins off a pprof listener on the provided port.
func StartPprofServer(logger *logrus.Logger, port int) {
	logger.Infof("starting pprof server on port %d", port)

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("localhost:%d", port), nil); err != nil {
			logger.Warnf("pprof server exited: %v", err)
		}
	}()
}
