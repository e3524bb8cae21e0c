package main

import (
	_ "embed"

	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
	graphqlhttp "github.com/cocrafts/graphql/graphql-http"
)

//go:embed example.gql
var schema string

type Resolver struct {
}

func (r *Resolver) Schema() string {
	return schema
}

func (r *Resolver) Config() *graphqlhttp.BaseConfig {
	return &graphqlhttp.BaseConfig{
		Logger:  graphqlcli.Logger(service),
		Service: service,
	}
}

func (r *Resolver) Hello() string {
	return "world!"
}

func (r *Resolver) World() string {
	return "Hello"
}
