// Command ideaboard-token mints a signed bearer token for local development
// and scripted tests, standing in for the external identity provider.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"ideaboard/internal/auth"
	"ideaboard/internal/models"
	"ideaboard/internal/util"
)

func main() {
	_ = godotenv.Load()

	uid := pflag.String("uid", "", "User id (token subject)")
	email := pflag.String("email", "", "Email address")
	name := pflag.String("name", "", "Display name")
	photo := pflag.String("photo", "", "Photo URL")
	ttl := pflag.Duration("ttl", 24*time.Hour, "Token lifetime")
	secret := pflag.String("jwt-secret", util.EnvOrDefault("IDEABOARD_JWT_SECRET", ""), "HMAC secret shared with the server")
	issuer := pflag.String("jwt-issuer", util.EnvOrDefault("IDEABOARD_JWT_ISSUER", "ideaboard"), "Token issuer")
	pflag.Parse()

	if *uid == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: ideaboard-token --uid ID --email ADDRESS [--name NAME]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	tokens, err := auth.NewTokens(*secret, *issuer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	token, err := tokens.Issue(models.Principal{UID: *uid, Email: *email, DisplayName: *name, PhotoURL: *photo}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
