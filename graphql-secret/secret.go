// Package graphqlsecret provides AWS Secrets Manager integration for loading
// configuration secrets into Go structs.
package graphqlsecret

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/savaki/secrets"
)

func LoadSecret(s *session.Session, secretName string, data interface{}) error {
	api := secrets.WithSecretsManager(secretsmanager.New(s))
	manager, err := secrets.NewManager(api)
	if err != nil {
		return fmt.Errorf("failed to initialize secrets: %w", err)
	}

	if err := manager.Decode(secretName, &data); err != nil {
		return fmt.Errorf("failed to load secret %v: %v", secretName, err)
	}
	return nil
}

// RedisSecret is the shape of the secret holding the Redis credentials for
// the connection store and pubsub registry.
type RedisSecret struct {
	URL      string `json:"url"`
	Password string `json:"password,omitempty"`
}

// LoadRedisURL resolves the Redis connection url: a non-empty secret name
// takes precedence over the fallback from flags.
func LoadRedisURL(s *session.Session, secretName, fallback string) (string, error) {
	if secretName == "" {
		return fallback, nil
	}

	var secret RedisSecret
	if err := LoadSecret(s, secretName, &secret); err != nil {
		return "", err
	}
	if secret.URL == "" {
		return "", fmt.Errorf("secret %v holds no redis url", secretName)
	}
	return secret.URL, nil
}
