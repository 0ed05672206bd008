// Package provider is the document provider of the primary volume: a
// WebDAV server exposing the volume directory, and the client the platform
// uses to reach it.
package provider

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/webdav"
)

type Server struct {
	handler    *webdav.Handler
	log        logrus.FieldLogger
	authUser   string
	authPass   string
	authEnable bool
}

// NewServer serves the directory root. Credentials are optional.
func NewServer(root, authUser, authPass string, log logrus.FieldLogger) *Server {
	return &Server{
		handler: &webdav.Handler{
			FileSystem: webdav.Dir(root),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).WithError(err).Debug("provider request failed")
				}
			},
		},
		log:        log,
		authUser:   authUser,
		authPass:   authPass,
		authEnable: authUser != "" && authPass != "",
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	user, pass, ok := r.BasicAuth()
	if s.authEnable && (!ok || !s.authenticate(user, pass)) {
		s.log.WithField("user", user).Warn("provider auth failed")
		w.Header().Set("WWW-Authenticate", `Basic realm="storageverifier"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.handler.ServeHTTP(sw, r)
	s.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": sw.status,
	}).Trace("provider request")
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

func (s *Server) authenticate(username, password string) bool {
	if !s.authEnable {
		return true
	}
	return username == s.authUser && password == s.authPass
}
