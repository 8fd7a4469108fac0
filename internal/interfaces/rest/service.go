package rest_interface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
	appconfig "github.com/vulpemventures/funder/internal/app-config"
	"github.com/vulpemventures/funder/internal/core/application"
)

type service struct {
	config    ServiceConfig
	appConfig *appconfig.AppConfig
	funder    *application.FundingService
	handler   *Handler
	server    *http.Server

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(config ServiceConfig, appConfig *appconfig.AppConfig) (*service, error) {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.Infof(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{
		config: config, appConfig: appConfig, log: logFn, warn: warnFn,
	}, nil
}

// Start connects to the blockchain, starts refreshing the wallets and
// then starts serving requests.
func (s *service) Start() error {
	funder, err := s.appConfig.FundingService(context.Background())
	if err != nil {
		return err
	}
	s.funder = funder

	s.funder.Start()
	s.log("started funding service")

	lis, err := net.Listen("tcp", s.config.address())
	if err != nil {
		s.funder.Stop()
		return fmt.Errorf("failed to listen on %s: %s", s.config.address(), err)
	}

	s.handler = NewHandler(s.funder)
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := s.server.Serve(lis); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.warn(err, "rest server stopped unexpectedly")
		}
	}()

	s.log("start listening on %s", s.config.address())
	return nil
}

func (s *service) Stop() {
	if s.server != nil {
		s.handler.Close()
		s.log("closed event stream connections")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.warn(err, "failed to gracefully stop rest server")
		}
		s.log("stopped rest server")
	}

	if s.funder != nil {
		s.funder.Stop()
		s.log("stopped funding service")
	}

	if store := s.appConfig.WalletStore(); store != nil {
		store.Close()
		s.log("closed wallet store")
	}
	s.log("shutdown")
}
