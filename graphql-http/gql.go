// Package graphqlhttp provides the HTTP side of the GraphQL services: a
// relay endpoint with built-in CORS and logging middleware, common scalar
// types, and schema introspection controls.
package graphqlhttp

import (
	graphqlcli "github.com/cocrafts/graphql/graphql-cli"
)

func AllowIntrospection() bool {
	return graphqlcli.CommonOpts.Env != "production" || graphqlcli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
