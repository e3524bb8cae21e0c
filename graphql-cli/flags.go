package graphqlcli

import "github.com/urfave/cli/v2"

var CommonOpts struct {
	Console   bool
	Env       string
	Port      int
	RedisURL  string
	KeyPrefix string
}

var ConsoleFlag = cli.BoolFlag{
	Name:        "console",
	Usage:       "whether to run in console mode or lambda mode",
	Value:       false,
	EnvVars:     []string{"CONSOLE"},
	Destination: &CommonOpts.Console,
}
var EnvFlag = cli.StringFlag{
	Name:        "env",
	Usage:       "environment",
	Value:       "local",
	EnvVars:     []string{"ENV"},
	Destination: &CommonOpts.Env,
}
var RedisURLFlag = cli.StringFlag{
	Name:        "redis-url",
	Usage:       "Redis connection url holding connection state and the pubsub registry",
	Value:       "redis://localhost:6379/0",
	EnvVars:     []string{"REDIS_URL"},
	Destination: &CommonOpts.RedisURL,
}
var KeyPrefixFlag = cli.StringFlag{
	Name:        "key-prefix",
	Usage:       "key prefix namespacing the pubsub registry",
	Value:       "pubsub",
	EnvVars:     []string{"KEY_PREFIX"},
	Destination: &CommonOpts.KeyPrefix,
}
var PortFlag = func(p int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:        "port",
		Usage:       "Port to listen to, if running locally",
		Value:       p,
		EnvVars:     []string{"PORT"},
		Destination: &CommonOpts.Port,
	}
}

var CommonFlags = []cli.Flag{
	&ConsoleFlag,
	&EnvFlag,
	&RedisURLFlag,
	&KeyPrefixFlag,
}
