package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

var knownFlags = []string{"-a", "-w", "-k", "-d", "-s", "-t", "-r", "-p", "-m", "-f", "-g", "-e", "-u", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-w string   HTTP bind address (e.g., ":8080")
//	-k string   storage backend: postgres | memory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-p string   password hasher: bcrypt | argon2id
//	-m string   mail backend: log | ses
//	-f string   verification mail sender address
//	-g string   SES region
//	-e string   SES endpoint override
//	-u string   web client URL used in verification links
//	-l string   log level
//
// args are filtered with flagx.FilterArgs first, so -c/-config and foreign
// flags do not make parsing fail. Duration flags are integers in minutes.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port of the gRPC endpoint")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "address and port of the HTTP endpoint")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (postgres|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.PasswordHasher, "p", config.PasswordHasher, "password hasher (bcrypt|argon2id)")
	fs.StringVar(&config.MailBackend, "m", config.MailBackend, "mail backend (log|ses)")
	fs.StringVar(&config.MailFrom, "f", config.MailFrom, "verification mail sender")
	fs.StringVar(&config.SESRegion, "g", config.SESRegion, "SES region")
	fs.StringVar(&config.SESEndpoint, "e", config.SESEndpoint, "SES endpoint override")
	fs.StringVar(&config.ClientURL, "u", config.ClientURL, "web client URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	return nil
}
