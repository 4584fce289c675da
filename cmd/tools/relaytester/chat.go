package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
	"github.com/zhouzirui/neon-ghost/backend/internal/model/chat"
	"github.com/zhouzirui/neon-ghost/backend/internal/service/relay"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a single message and print the normalized reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("配置加载失败: %w", err)
			}
			applyOverrides(&cfg.Relay)

			catalog, err := character.DefaultCatalog()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
			defer cancel()

			r, err := relay.New(ctx, cfg.Relay, catalog, logger)
			if err != nil {
				return err
			}

			meta := catalog.Normalize(character.Descriptor{
				Name:        viper.GetString("name"),
				Realm:       viper.GetString("realm"),
				Species:     viper.GetString("species"),
				Personality: viper.GetString("personality"),
				Age:         viper.GetFloat64("age"),
			})
			history := []chat.HistoryEntry{{Role: chat.RoleUser, Content: viper.GetString("message")}}

			start := time.Now()
			resp, err := r.Relay(ctx, history, meta)
			return report(cmd.OutOrStdout(), resp, err, time.Since(start))
		},
	}

	cmd.Flags().StringP("message", "m", "Hello, who are you?", "发送给角色的消息")
	cmd.Flags().String("name", "Byte", "角色名称")
	cmd.Flags().String("realm", "Void Station", "出身领域")
	cmd.Flags().String("species", "Neon Ghost", "物种")
	cmd.Flags().String("personality", "Sassy", "性格")
	cmd.Flags().Float64("age", 1850, "年龄（周期）")
	cmd.Flags().Duration("timeout", 45*time.Second, "请求超时时间")
	return cmd
}

func applyOverrides(cfg *config.RelayConfig) {
	if v := viper.GetString("provider"); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := viper.GetString("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v := viper.GetString("model"); v != "" {
		cfg.Model = v
	}
	if v := viper.GetString("token"); v != "" {
		cfg.APIToken = v
	}
}

// report prints the reply, or the error kind and detail, and passes the error through so
// the process exits non-zero on failure.
func report(w io.Writer, resp chat.RelayResponse, err error, elapsed time.Duration) error {
	if err != nil {
		fmt.Fprintf(w, "[%s] %v (%s)\n", classify(err), err, elapsed.Round(time.Millisecond))
		var upstreamErr *relay.UpstreamError
		if errors.As(err, &upstreamErr) && upstreamErr.Body != "" {
			fmt.Fprintf(w, "upstream body: %s\n", upstreamErr.Body)
		}
		return err
	}

	fmt.Fprintf(w, "reply (%s):\n%s\n", elapsed.Round(time.Millisecond), resp.Content())
	return nil
}

func classify(err error) string {
	var (
		configErr    *relay.ConfigurationError
		upstreamErr  *relay.UpstreamError
		malformedErr *relay.MalformedResponse
		transportErr *relay.TransportError
	)
	switch {
	case errors.Is(err, relay.ErrInvalidHistory):
		return "invalid-history"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &upstreamErr):
		return fmt.Sprintf("upstream-%d", upstreamErr.Status)
	case errors.As(err, &malformedErr):
		return "malformed"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "unknown"
	}
}
