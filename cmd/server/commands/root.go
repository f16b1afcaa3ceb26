package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "classroom",
		Short: "Classroom - live slide presentation server",
		Long: `Classroom serves live lessons: an authority uploads a document, the
server converts it into slide images and every viewer in the room follows
slide changes, chat, the whiteboard and the WebRTC broadcast in real time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceUsage:       true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	root.AddCommand(newServeCmd(), newConvertCmd(), newSweepCmd())
	return root
}

// Execute runs the root command. Errors are logged here.
func Execute() error {
	setupLogger()
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		return err
	}
	return nil
}

func SetVersion(v string) {
	rootCmd.Version = v
}

func setupLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}
