package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codeberg.org/snonux/lingogate/internal/cli"
	"codeberg.org/snonux/lingogate/internal/processor"
)

func main() {
	flags := cli.NewFlags()

	rootCmd := cli.CreateRootCommand(flags, handlers(flags))

	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
		cli.ResolveFlags(flags)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// handlers builds the processor only once flags and config are resolved
func handlers(flags *cli.Flags) cli.Handlers {
	return cli.Handlers{
		Translate: func(cmd *cobra.Command, args []string) error {
			proc := processor.NewProcessor(flags)
			text, err := proc.ReadText(args)
			if err != nil {
				return err
			}
			return proc.ProcessSingle(cmd.Context(), text)
		},
		Batch: func(cmd *cobra.Command, args []string) error {
			proc := processor.NewProcessor(flags)
			text, err := proc.ReadText(args)
			if err != nil {
				return err
			}
			return proc.ProcessBatch(cmd.Context(), text)
		},
		Languages: func(cmd *cobra.Command, args []string) error {
			return processor.NewProcessor(flags).PrintLanguages()
		},
		History: func(cmd *cobra.Command, args []string) error {
			return processor.NewProcessor(flags).ShowHistory(cmd.Context())
		},
		DevServer: func(cmd *cobra.Command, args []string) error {
			return processor.NewProcessor(flags).RunDevServer(cmd.Context())
		},
		GUI: func(cmd *cobra.Command, args []string) error {
			return processor.NewProcessor(flags).RunGUIMode(cmd.Context())
		},
	}
}
