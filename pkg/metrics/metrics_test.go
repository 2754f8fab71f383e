/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreRegistered(t *testing.T) {
	// A vec with no children is omitted from Gather output, so give each
	// collector one labelled child before gathering.
	TranslateTotal.WithLabelValues("jail-0", "ok").Add(0)
	TranslateDuration.WithLabelValues("jail-0").Observe(0)
	MirrorHitsTotal.WithLabelValues("jail-0", "/lib").Add(0)
	FDAuditViolationsTotal.WithLabelValues("jail-0").Add(0)
	DelayedTranslationsTotal.WithLabelValues("jail-0").Add(0)

	mfs, err := Registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}

	for _, want := range []string{
		"pathjail_translate_total",
		"pathjail_translate_duration_seconds",
		"pathjail_mirror_hits_total",
		"pathjail_fd_audit_violations_total",
		"pathjail_delayed_translations_total",
	} {
		assert.True(t, names[want], "expected %s to be registered", want)
	}
}

func TestTranslateTotalIncrements(t *testing.T) {
	TranslateTotal.Reset()
	TranslateTotal.WithLabelValues("jail-1", "ok").Inc()
	TranslateTotal.WithLabelValues("jail-1", "ok").Inc()
	TranslateTotal.WithLabelValues("jail-1", "denied").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(TranslateTotal.WithLabelValues("jail-1", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TranslateTotal.WithLabelValues("jail-1", "denied")))
}

func TestServeRejectsEmptyAddress(t *testing.T) {
	require.Error(t, Serve(""))
}
