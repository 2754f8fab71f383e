/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// endpointPromMetrics is the path prometheus scrapes.
const endpointPromMetrics = "/v1/metrics"

// Serve binds a TCP listener at addr and serves the Registry's
// collectors at endpointPromMetrics until the process exits or the
// server errors. It blocks, so callers run it in its own goroutine.
func Serve(addr string) error {
	if addr == "" {
		return errors.New("metrics listen address is required")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPromMetrics, promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	logrus.Infof("starting metrics HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		return errors.Wrapf(err, "serve metrics on %s", addr)
	}
	return nil
}
