package command

import "github/chapool/go-stark-signer/internal/config"

var ReadLineForTest = readLine

func ResolveSecretsForTest(cfg *config.Server, secret func(prompt string) (string, error)) error {
	prev := readSecret
	readSecret = secret
	defer func() { readSecret = prev }()
	return resolveSecrets(cfg)
}
