package graphqlhttp

import (
	"os"

	"github.com/rs/zerolog"

	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service graphqlcli.Service
}

func NewConfig(service graphqlcli.Service) BaseConfig {
	return BaseConfig{
		Logger: zerolog.New(os.Stdout).With().
			Str("service", service.Name).
			Str("version", service.Version).
			Logger(),
		Service: service,
	}
}
