/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the process-wide registry the HTTP server exposes.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		TranslateTotal,
		TranslateDuration,
		MirrorHitsTotal,
		FDAuditViolationsTotal,
		DelayedTranslationsTotal,
	)
}
