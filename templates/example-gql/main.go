package main

import (
	"log"
	"os"

	_ "embed"

	"github.com/urfave/cli/v2"

	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
	graphqlhttp "github.com/cocrafts/graphql/graphql-http"
)

var service = graphqlcli.Service{
	Name:    "example-api",
	Version: graphqlcli.CommitHash(),
}

func main() {
	app := graphqlcli.App(
		service,
		action,
		append(
			graphqlcli.CommonFlags,
			graphqlcli.PortFlag(5001),
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(ctx *cli.Context) error {
	return graphqlhttp.Webserver(&Resolver{})
}
