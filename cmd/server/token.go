package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/technosupport/control-center/internal/config"
	"github.com/technosupport/control-center/internal/tokens"
)

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print an access token for a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "user id, defaults to auth.default_user_id"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if cfg.Auth.SigningKey == "" {
				return errors.New("auth.signing_key is empty")
			}
			user := c.String("user")
			if user == "" {
				user = cfg.Auth.DefaultUserID
			}
			if _, err := uuid.Parse(user); err != nil {
				return fmt.Errorf("user id %q: %w", user, err)
			}

			token, err := tokens.NewManager(cfg.Auth.SigningKey, cfg.Auth.TokenTTL).GenerateAccessToken(user)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
