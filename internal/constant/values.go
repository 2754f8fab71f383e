/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// constants of the pathjail CLI config

package constant

const (
	DefaultLogLevel string = "info"

	DefaultLogDirName     = "logs"
	DefaultSystemSockName = "pathjail.sock"

	// Log rotation
	DefaultRotateLogMaxSize    = 200 // 200 megabytes
	DefaultRotateLogMaxBackups = 5
	DefaultRotateLogMaxAge     = 0 // days
	DefaultRotateLogLocalTime  = true
	DefaultRotateLogCompress   = true

	// DefaultMetricsListenAddress is where the prometheus exporter binds
	// when metrics are enabled but neither --metrics-address nor the
	// config's metrics.listen sets an address.
	DefaultMetricsListenAddress = "127.0.0.1:9469"
)
