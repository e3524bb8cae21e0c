package main

import (
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v2"

	"github.com/cocrafts/graphql/gateway"
	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
	graphqlws "github.com/cocrafts/graphql/graphql-ws"
	"github.com/cocrafts/graphql/graphql-ws/contextdao"
	"github.com/cocrafts/graphql/graphql-ws/payloaddao"
	"github.com/cocrafts/graphql/pubsub"
)

var service = graphqlcli.NewService("example-ws")

var opts struct {
	GatewayEndpoint string
	ConnectionTTL   time.Duration
}

func main() {
	app := graphqlcli.App(
		service,
		action,
		append(
			graphqlcli.CommonFlags,
			graphqlcli.PortFlag(5002),
			&cli.StringFlag{
				Name:        "gateway-endpoint",
				Usage:       "API Gateway management endpoint (https://{domain}/{stage}) used when publishing",
				EnvVars:     []string{"GATEWAY_ENDPOINT"},
				Destination: &opts.GatewayEndpoint,
			},
			&cli.DurationFlag{
				Name:        "connection-ttl",
				Usage:       "how long connection state may outlive a missed disconnect",
				Value:       2 * time.Hour,
				EnvVars:     []string{"CONNECTION_TTL"},
				Destination: &opts.ConnectionTTL,
			},
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	logger := graphqlcli.Logger(service)

	client, err := pubsub.Build(graphqlcli.CommonOpts.RedisURL)
	if err != nil {
		return err
	}

	registry := pubsub.NewRegistry(client, graphqlcli.CommonOpts.KeyPrefix, logger)
	contexts := contextdao.New(client, logger, opts.ConnectionTTL)
	payloads := payloaddao.New(client, opts.ConnectionTTL)
	roots := newRoots(registry)

	if graphqlcli.CommonOpts.Console {
		return consoleServer(logger, registry, payloads)
	}

	pool := gateway.NewPool()
	handler := &graphqlws.Handler{
		Options: graphqlws.Options{
			KeyPrefix: graphqlcli.CommonOpts.KeyPrefix,
			Roots:     roots,
		},
		Registry: registry,
		Contexts: contexts,
		Payloads: payloads,
		Gateways: pool.For,
		Logger:   logger,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
