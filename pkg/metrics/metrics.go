/*
 * Copyright (c) 2021. Ant Group. All rights reserved.
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics declares the jail's prometheus collectors and a small
// registry/HTTP-server wrapper around them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	jailIDLabel  = "jail_id"
	resultLabel  = "result"
	locationLabel = "location"
)

var (
	// TranslateTotal counts translate() calls by outcome.
	TranslateTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathjail_translate_total",
			Help: "Count of translate calls by outcome.",
		},
		[]string{jailIDLabel, resultLabel},
	)

	// TranslateDuration is the latency of translate() calls.
	TranslateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathjail_translate_duration_seconds",
			Help:    "Histogram of translate call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{jailIDLabel},
	)

	// MirrorHitsTotal counts substitute() matches per mirror location.
	MirrorHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathjail_mirror_hits_total",
			Help: "Count of substitute matches per mirror.",
		},
		[]string{jailIDLabel, locationLabel},
	)

	// FDAuditViolationsTotal counts check_fd containment failures.
	FDAuditViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathjail_fd_audit_violations_total",
			Help: "Count of check_fd containment failures.",
		},
		[]string{jailIDLabel},
	)

	// DelayedTranslationsTotal counts translations short-circuited by an
	// active trigger.
	DelayedTranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathjail_delayed_translations_total",
			Help: "Count of translations short-circuited by an active trigger.",
		},
		[]string{jailIDLabel},
	)
)
