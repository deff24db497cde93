package config

import "fmt"

// Environment is a selectable deployment target. Each environment has its
// own authorization server and its own data universe: tokens and cached
// lists never cross environments.
type Environment string

const (
	Production Environment = "production"
	Sandbox    Environment = "sandbox"
)

// Fixed authorization-server hosts per environment. The API host is NOT
// derived from these; it always comes from the token response's instance_url.
var loginHosts = map[Environment]string{
	Production: "https://login.salesforce.com",
	Sandbox:    "https://test.salesforce.com",
}

// ParseEnvironment validates and normalizes an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case Production, Sandbox:
		return Environment(s), nil
	case "prod":
		return Production, nil
	case "test":
		return Sandbox, nil
	default:
		return "", fmt.Errorf("unknown environment %q (use production or sandbox)", s)
	}
}

// LoginURL returns the authorization-server base URL for the environment.
func (e Environment) LoginURL() string {
	if host, ok := loginHosts[e]; ok {
		return host
	}
	return loginHosts[Production]
}

func (e Environment) String() string {
	return string(e)
}
