package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/2beens/wodcareer/internal/auth"

	"github.com/fatih/color"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Issue or revoke athlete sessions in redis",
	Long: `Sessions are normally issued by the account service. These commands
exist for local testing against a real redis.

The redis password comes from WODCAREER_REDIS_PASS.`,
}

var sessionOpenCmd = &cobra.Command{
	Use:   "open <athlete-id>",
	Short: "Open a session for an athlete and print its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		athleteID, err := strconv.Atoi(args[0])
		if err != nil || athleteID <= 0 {
			return fmt.Errorf("invalid athlete id: %s", args[0])
		}

		rdb, err := redisClient()
		if err != nil {
			return err
		}
		defer rdb.Close()

		token, err := auth.NewService(auth.DefaultTTL, rdb).Open(cmd.Context(), athleteID)
		if err != nil {
			return err
		}
		color.Green("✓ Session opened for athlete %d", athleteID)
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close <token>",
	Short: "Revoke a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := redisClient()
		if err != nil {
			return err
		}
		defer rdb.Close()

		closed, err := auth.NewService(auth.DefaultTTL, rdb).Close(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !closed {
			color.Yellow("Session not found")
			return nil
		}
		color.Yellow("✗ Session closed")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionOpenCmd, sessionCloseCmd)
}

func redisClient() (*redis.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.RedisHost == "" {
		return nil, fmt.Errorf("redis is not configured for env [%s]", envFlag)
	}
	return redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: os.Getenv("WODCAREER_REDIS_PASS"),
	}), nil
}
