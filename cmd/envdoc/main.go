package main

import (
	"fmt"
	"io"
	"os"

	"authinfo/internal/config"
)

func main() {
	write(os.Stdout)
}

func write(w io.Writer) {
	fmt.Fprintln(w, "# authinfo Environment Variables")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables override values from the configuration file.")
	fmt.Fprintln(w, "Slice values are comma separated.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Available Environment Variables")
	fmt.Fprintln(w)

	for _, example := range config.EnvExample(&config.Config{}) {
		fmt.Fprintf(w, "- `%s`\n", example)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Spring Style Aliases")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The OAuth2 client may also be set with these names. `%s_*` variables win when both are set.\n", config.EnvPrefix)
	fmt.Fprintln(w)
	for _, name := range config.SpringEnvAliases() {
		fmt.Fprintf(w, "- `%s`\n", name)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "## Examples")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "```bash")
	fmt.Fprintln(w, "# Report a Keycloak client")
	fmt.Fprintln(w, "export AUTHINFO_OAUTH2_CLIENT_ACCESSTOKENURI=https://kc.example.com/auth/realms/demo/protocol/openid-connect/token")
	fmt.Fprintln(w, "export AUTHINFO_OAUTH2_CLIENT_CLIENTID=frontend")
	fmt.Fprintln(w, "export AUTHINFO_OAUTH2_CLIENT_SCOPE=openid")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# Rate limit through Redis")
	fmt.Fprintln(w, "export AUTHINFO_RATELIMIT_ENABLED=true")
	fmt.Fprintln(w, "export AUTHINFO_RATELIMIT_STORE=redis")
	fmt.Fprintln(w, "export AUTHINFO_REDIS_ADDRESS=redis:6379")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# Allow the front-end origin")
	fmt.Fprintln(w, "export AUTHINFO_CORS_ENABLED=true")
	fmt.Fprintln(w, "export AUTHINFO_CORS_ALLOWEDORIGINS=https://app.example.com")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "./authinfo serve --config authinfo.yaml")
	fmt.Fprintln(w, "```")
}
