package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	internaljwt "github.com/jobyojnahub-a11y/websevixof/internal/jwt"
	"github.com/jobyojnahub-a11y/websevixof/internal/model"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue socket tokens and issuer keys",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Sign a socket token with SOCKET_TOKEN_SECRET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "subject id", Required: true},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "admin, client or visitor", Value: string(model.RoleAdmin)},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "display name"},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: internaljwt.DefaultTTL},
					&cli.StringFlag{Name: "secret", Usage: "signing secret", EnvVars: []string{"SOCKET_TOKEN_SECRET"}, Required: true},
				},
				Action: issueToken,
			},
			{
				Name:      "hash-key",
				Usage:     "Print the bcrypt hash of an issuer key for TOKEN_ISSUER_KEY_HASH",
				ArgsUsage: "<key>",
				Action:    hashKey,
			},
		},
	}
}

func issueToken(c *cli.Context) error {
	issuer, err := internaljwt.NewIssuer(c.String("secret"), c.Duration("ttl"))
	if err != nil {
		return err
	}

	token, err := issuer.Issue(internaljwt.Claims{
		SubjectID:   c.String("subject"),
		Role:        model.Role(c.String("role")),
		DisplayName: c.String("name"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(token)
}

func hashKey(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("usage: chatctl token hash-key <key>")
	}
	if c.Args().Len() > 1 {
		fmt.Fprintln(os.Stderr, "warning: extra arguments ignored")
	}

	hashed, err := internaljwt.HashIssuerKey(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hashed)
	return nil
}
