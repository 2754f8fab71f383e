/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package system

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathjail/pathjail/pkg/pathcore"
	"github.com/pathjail/pathjail/pkg/supervisor"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	root := t.TempDir()
	realLib := t.TempDir()

	jail, err := pathcore.New(root, pathcore.WithMirror(realLib, "/lib"))
	require.NoError(t, err)

	sock := filepath.Join(t.TempDir(), "pathjail.sock")
	sc, err := NewController(jail, supervisor.New(jail), sock)
	require.NoError(t, err)
	return sc
}

func TestDescribeJail(t *testing.T) {
	sc := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, endpointJail, nil)
	rec := httptest.NewRecorder()
	sc.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var info jailInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.NotEmpty(t, info.ID)
	assert.NotEmpty(t, info.Root)
	require.Len(t, info.Mirrors, 1)
	assert.Equal(t, "/lib", info.Mirrors[0].Location)
	assert.True(t, info.Mirrors[0].Sanitized)
}

func TestDescribeSessionsEmpty(t *testing.T) {
	sc := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, endpointSessions, nil)
	rec := httptest.NewRecorder()
	sc.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var infos []sessionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Empty(t, infos)
}

func TestNewControllerRemovesStaleSocket(t *testing.T) {
	root := t.TempDir()
	jail, err := pathcore.New(root)
	require.NoError(t, err)

	sock := filepath.Join(t.TempDir(), "stale.sock")
	require.NoError(t, os.WriteFile(sock, nil, 0600))

	_, err = NewController(jail, supervisor.New(jail), sock)
	require.NoError(t, err)

	_, err = os.Stat(sock)
	assert.True(t, os.IsNotExist(err))
}
