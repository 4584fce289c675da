package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zhouzirui/neon-ghost/backend/internal/config"
	"github.com/zhouzirui/neon-ghost/backend/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "relaytester",
	Short: "relaytester sends one chat turn through the relay using the server configuration",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	SilenceUsage: true,
}

var logger = zap.NewNop()

func initLogger() error {
	l, err := logging.New(config.LogConfig{
		Level:       viper.GetString("log-level"),
		File:        viper.GetString("log-file"),
		Development: true,
	})
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func initCommands(root *cobra.Command) error {
	viper.SetEnvPrefix("relaytester")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(root.PersistentFlags()); err != nil {
		return err
	}

	chatCmd := newChatCommand()
	if err := viper.BindPFlags(chatCmd.Flags()); err != nil {
		return err
	}
	root.AddCommand(chatCmd)
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] 无法加载 .env，改用系统环境变量: %v\n", err)
	}

	rootCmd.PersistentFlags().String("log-level", "warn", "日志级别 (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "日志文件路径，留空只输出到 stderr")
	rootCmd.PersistentFlags().String("provider", "", "覆盖 RELAY_PROVIDER (http 或 ark)")
	rootCmd.PersistentFlags().String("endpoint", "", "覆盖 RELAY_ENDPOINT")
	rootCmd.PersistentFlags().String("model", "", "覆盖 RELAY_MODEL")
	rootCmd.PersistentFlags().String("token", "", "覆盖 RELAY_API_TOKEN")

	if err := initCommands(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "初始化命令失败: %v\n", err)
		os.Exit(1)
	}

	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
