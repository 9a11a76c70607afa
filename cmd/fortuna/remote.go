package main

import (
	"strings"

	"github.com/spf13/cobra"

	"fortuna/internal/cli"
	"fortuna/internal/config"
	"fortuna/internal/engine"
	"fortuna/internal/game"
)

func newRemoteCmd(cfg config.CLIConfig) *cobra.Command {
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Play against a shared multiplayer server",
	}
	remote.PersistentFlags().String("api", cfg.APIBaseURL, "base URL of the server")

	remote.AddCommand(
		newRemoteSignupCmd(),
		newRemoteLoginCmd(),
		newRemoteLogoutCmd(),
		newRemoteStatusCmd(),
		newRemoteAssetsCmd(),
		newRemoteOrderCmd(engine.SideBuy, "buy SYMBOL QTY", "Buy shares on the server"),
		newRemoteOrderCmd(engine.SideSell, "sell SYMBOL QTY", "Sell shares on the server"),
		newRemoteAchievementsCmd(),
		newRemoteLeaderboardCmd(),
		newRemotePushCmd(cfg),
		newRemotePullCmd(cfg),
	)
	return remote
}

func remoteClient(cmd *cobra.Command) *cli.Client {
	base, _ := cmd.Flags().GetString("api")
	return cli.NewClient(base)
}

func authedClient(cmd *cobra.Command) (*cli.Client, cli.Session, error) {
	sess, err := cli.LoadSession()
	if err != nil {
		return nil, cli.Session{}, err
	}
	return remoteClient(cmd), sess, nil
}

func newRemoteSignupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			username, err := promptOptional("Username (optional)")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			sess, err := remoteClient(cmd).Signup(cmd.Context(), email, username, password)
			if err != nil {
				return err
			}
			if err := cli.SaveSession(cli.Session{
				Token:    sess.Token,
				UserID:   sess.UserID,
				Email:    sess.Email,
				Username: sess.Username,
			}); err != nil {
				return err
			}
			printSuccess("Signed up and logged in as " + sess.Email)
			return nil
		},
	}
}

func newRemoteLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := promptRequired("Email")
			if err != nil {
				return err
			}
			password, err := promptPassword("Password")
			if err != nil {
				return err
			}
			sess, err := remoteClient(cmd).Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := cli.SaveSession(cli.Session{
				Token:    sess.Token,
				UserID:   sess.UserID,
				Email:    sess.Email,
				Username: sess.Username,
			}); err != nil {
				return err
			}
			printSuccess("Logged in as " + sess.Email)
			return nil
		},
	}
}

func newRemoteLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cli.ClearSession(); err != nil {
				return err
			}
			printInfo("Logged out.")
			return nil
		},
	}
}

func newRemoteStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show your server-side dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			raw, err := client.Dashboard(cmd.Context(), sess.Token)
			if err != nil {
				return err
			}
			d, err := decodeInto[game.Dashboard](raw)
			if err != nil {
				return err
			}
			renderDashboard(d)
			return nil
		},
	}
}

func newRemoteAssetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets [symbol]",
		Short: "List the server market",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				raw, err := client.AssetDetail(cmd.Context(), sess.Token, args[0])
				if err != nil {
					return err
				}
				detail, err := decodeInto[game.AssetView](raw)
				if err != nil {
					return err
				}
				renderAssetDetail(detail)
				return nil
			}
			raw, err := client.ListAssets(cmd.Context(), sess.Token)
			if err != nil {
				return err
			}
			payload, err := decodeInto[assetsPayload](raw)
			if err != nil {
				return err
			}
			renderAssets(payload.Assets)
			return nil
		},
	}
}

func newRemoteOrderCmd(side engine.Side, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			raw, err := client.PlaceOrder(cmd.Context(), sess.Token, strings.ToUpper(args[0]), string(side), "", qty)
			if err != nil {
				return err
			}
			res, err := decodeInto[engine.TradeResult](raw)
			if err != nil {
				return err
			}
			renderTrade(res)
			return nil
		},
	}
}

func newRemoteAchievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "Show your server-side achievement board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			raw, err := client.Achievements(cmd.Context(), sess.Token)
			if err != nil {
				return err
			}
			payload, err := decodeInto[achievementsPayload](raw)
			if err != nil {
				return err
			}
			renderAchievements(payload.Achievements)
			return nil
		},
	}
}

func newRemoteLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the server leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			raw, err := client.Leaderboard(cmd.Context(), sess.Token)
			if err != nil {
				return err
			}
			payload, err := decodeInto[leaderboardPayload](raw)
			if err != nil {
				return err
			}
			renderLeaderboard(payload.Rows)
			return nil
		},
	}
}

// newRemotePushCmd uploads the local save as the server-side account.
func newRemotePushCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the local save to the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			snap, err := svc.ExportSnapshot(cmd.Context(), localAccountID)
			if err != nil {
				return err
			}
			if err := client.ImportSnapshot(cmd.Context(), sess.Token, snap); err != nil {
				return err
			}
			printSuccess("Pushed local save to " + client.BaseURL)
			return nil
		},
	}
}

// newRemotePullCmd overwrites the local save with the server-side account.
func newRemotePullCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace the local save with the server-side account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, sess, err := authedClient(cmd)
			if err != nil {
				return err
			}
			snap, err := client.ExportSnapshot(cmd.Context(), sess.Token)
			if err != nil {
				return err
			}
			svc, done, err := openLocal(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer done()
			if err := svc.ImportSnapshot(cmd.Context(), localAccountID, snap); err != nil {
				return err
			}
			printSuccess("Pulled server account into the local save.")
			return nil
		},
	}
}
