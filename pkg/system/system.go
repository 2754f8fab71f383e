/*
 * Copyright (c) 2022. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package system implements the unix-socket JSON HTTP introspection
// API: a gorilla/mux router bound to a net.UnixAddr serving read-only
// views of the jail and its active sessions.
package system

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/pathjail/pathjail/pkg/pathcore"
	"github.com/pathjail/pathjail/pkg/supervisor"
)

const (
	endpointJail     string = "/api/v1/jail"
	endpointSessions string = "/api/v1/sessions"
)

const defaultErrorCode string = "Unknown"

// Controller serves read-only introspection of a single Jail and its
// Supervisor's active Sessions over a unix socket.
type Controller struct {
	jail *pathcore.Jail
	sup  *supervisor.Supervisor

	addr   *net.UnixAddr
	router *mux.Router
}

type errorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorMessage(message string) errorMessage {
	return errorMessage{Code: defaultErrorCode, Message: message}
}

func (m *errorMessage) encode() string {
	msg, err := json.Marshal(&m)
	if err != nil {
		logrus.Errorf("failed to encode error message, %s", err)
		return ""
	}
	return string(msg)
}

func jsonResponse(w http.ResponseWriter, payload interface{}) {
	respBody, err := json.Marshal(&payload)
	if err != nil {
		logrus.Errorf("marshal error, %s", err)
		m := newErrorMessage(err.Error())
		http.Error(w, m.encode(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(respBody); err != nil {
		logrus.Errorf("write body %s", err)
	}
}

type mirrorInfo struct {
	Real             string `json:"real"`
	Location         string `json:"location"`
	Sanitized        bool   `json:"sanitized"`
	NeedSubstitution bool   `json:"need_substitution"`
}

type jailInfo struct {
	ID            string       `json:"id"`
	Root          string       `json:"root"`
	RunnerEnabled bool         `json:"runner_enabled"`
	Mirrors       []mirrorInfo `json:"mirrors"`
}

type sessionInfo struct {
	ID         string `json:"id"`
	PID        int    `json:"pid"`
	Trigger    string `json:"trigger,omitempty"`
	TriggerSet bool   `json:"trigger_armed"`
}

// NewController binds a unix socket at sock, removing any stale socket
// file left behind by a previous run.
func NewController(jail *pathcore.Jail, sup *supervisor.Supervisor, sock string) (*Controller, error) {
	if err := os.MkdirAll(filepath.Dir(sock), os.ModePerm); err != nil {
		return nil, err
	}

	if err := os.Remove(sock); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	addr, err := net.ResolveUnixAddr("unix", sock)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve address %s", sock)
	}

	sc := Controller{
		jail:   jail,
		sup:    sup,
		addr:   addr,
		router: mux.NewRouter(),
	}

	sc.registerRouter()

	return &sc, nil
}

// Run serves the controller's router over its unix socket until the
// listener errors.
func (sc *Controller) Run() error {
	logrus.Infof("starting system controller API server on %s", sc.addr)
	listener, err := net.ListenUnix("unix", sc.addr)
	if err != nil {
		return errors.Wrapf(err, "listen to socket %s", sc.addr)
	}

	if err := http.Serve(listener, sc.router); err != nil {
		return errors.Wrapf(err, "system management serving")
	}

	return nil
}

func (sc *Controller) registerRouter() {
	sc.router.HandleFunc(endpointJail, sc.describeJail()).Methods(http.MethodGet)
	sc.router.HandleFunc(endpointSessions, sc.describeSessions()).Methods(http.MethodGet)
}

func (sc *Controller) describeJail() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		mirrors := sc.jail.Mirrors()
		infos := make([]mirrorInfo, 0, len(mirrors))
		for _, m := range mirrors {
			infos = append(infos, mirrorInfo{
				Real:             m.Real,
				Location:         m.Location,
				Sanitized:        m.Sanitized,
				NeedSubstitution: m.NeedSubstitution,
			})
		}

		jsonResponse(w, &jailInfo{
			ID:            sc.jail.ID(),
			Root:          sc.jail.Root(),
			RunnerEnabled: sc.jail.RunnerEnabled(),
			Mirrors:       infos,
		})
	}
}

func (sc *Controller) describeSessions() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := sc.sup.Sessions()
		infos := make([]sessionInfo, 0, len(sessions))
		for _, sess := range sessions {
			trigger, armed := sess.Child.Trigger()
			infos = append(infos, sessionInfo{
				ID:         sess.ID,
				PID:        sess.PID,
				Trigger:    trigger,
				TriggerSet: armed,
			})
		}

		jsonResponse(w, &infos)
	}
}
