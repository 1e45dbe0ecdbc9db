package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"harnss7/cmd/s7client/config"
	"harnss7/cmd/s7client/options"
	"harnss7/pkg/device"
	"harnss7/pkg/gateway"
	"harnss7/pkg/generic"
	"k8s.io/klog/v2"
)

type Server struct {
	*generic.Server
	*config.Config
}

func NewServer(router *gin.Engine, o *options.Options, config *config.Config) (*Server, error) {
	allowMethods := []string{http.MethodPost, http.MethodGet, http.MethodDelete, http.MethodPut, http.MethodPatch}

	server := &Server{
		Server: &generic.Server{
			Router:  router,
			Port:    o.Port,
			Methods: allowMethods,
		},
		Config: config,
	}
	server.InstallHandlers()
	return server, nil
}

func (s *Server) InstallHandlers() {
	s.Router.HandleMethodNotAllowed = true
	s.Router.Use(generic.AllowMethods(s.Methods...))
	v1 := s.Router.Group("/api/v1")
	device.InstallHandler(v1, s.Config.DeviceMgr)
	gateway.InstallHandler(v1, s.Config.GatewayMgr)
}

func (s *Server) Serve() (func(ctx context.Context), error) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.Port),
		Handler: s.Router,
	}
	tlsEnabled := len(s.Config.CertFile) != 0 && len(s.Config.KeyFile) != 0
	if tlsEnabled {
		x509KeyPair, err := tls.LoadX509KeyPair(s.Config.CertFile, s.Config.KeyFile)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{x509KeyPair}}
	}

	go func() {
		var err error
		if tlsEnabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.ErrorS(err, "Failed to serve", "addr", srv.Addr)
		}
	}()

	return func(ctx context.Context) {
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown http server")
		}
		if err := s.Config.DeviceMgr.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "Failed to shutdown device manager")
		}
	}, nil
}
