package interfaces

import (
	"fmt"

	appconfig "github.com/vulpemventures/funder/internal/app-config"
	rest_interface "github.com/vulpemventures/funder/internal/interfaces/rest"
)

// Service interface defines the methods that every kind of interface, whether
// REST or whatever must be compliant with.
type Service interface {
	Start() error
	Stop()
}

type ServiceManager struct {
	Service
}

func NewRestServiceManager(
	config rest_interface.ServiceConfig, appConfig *appconfig.AppConfig,
) (*ServiceManager, error) {
	svc, err := rest_interface.NewService(config, appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initalize rest service: %s", err)
	}
	return &ServiceManager{svc}, nil
}
