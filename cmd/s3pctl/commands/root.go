// Package commands implements the s3pctl CLI commands: one-shot protocol
// operations against a node over a serial device.
package commands

import (
	"fmt"
	"time"

	s3p "github.com/paradigmatech/gos3p"
	"github.com/paradigmatech/gos3p/pkg/transport/serial"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is injected at build time.
	Version = "dev"

	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "s3pctl",
	Short: "s3pctl - manage an embedded node over its serial management protocol",
	Long: `s3pctl inspects and mutates the state of an embedded node over a
byte-oriented serial link: read and write its typed register table,
transfer byte ranges to and from its virtual memory map, execute
commands, and browse its self-describing metadata.

Use "s3pctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/s3pctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("device", "/dev/ttyUSB0", "serial device path")
	rootCmd.PersistentFlags().Int("baud", 115200, "serial baud rate (9600 or 115200)")
	rootCmd.PersistentFlags().Uint8("manager-id", 0x6A, "manager node id")
	rootCmd.PersistentFlags().Uint8("node-id", 0x2A, "target node id")

	viper.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("baud", rootCmd.PersistentFlags().Lookup("baud"))
	viper.BindPFlag("manager-id", rootCmd.PersistentFlags().Lookup("manager-id"))
	viper.BindPFlag("node-id", rootCmd.PersistentFlags().Lookup("node-id"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(rebootCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(regsCmd)
	rootCmd.AddCommand(vmemCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.config/s3pctl")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("S3PCTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("using config file %s", viper.ConfigFileUsed())
	}
}

func baudRate() (serial.BaudRate, error) {
	switch viper.GetInt("baud") {
	case 9600:
		return serial.Baud9600, nil
	case 115200:
		return serial.Baud115200, nil
	default:
		return 0, fmt.Errorf("unsupported baud rate %d", viper.GetInt("baud"))
	}
}

// openManager dials the configured serial device and wraps it in a
// Manager. The caller owns the returned Manager and must Close it.
func openManager() (*s3p.Manager, error) {
	baud, err := baudRate()
	if err != nil {
		return nil, err
	}
	device := viper.GetString("device")
	port, err := serial.Open(device, baud)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	managerID := uint8(viper.GetUint("manager-id"))
	nodeID := uint8(viper.GetUint("node-id"))
	return s3p.NewManager(port, managerID, nodeID, log.StandardLogger()), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print s3pctl version and supported protocol version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("s3pctl %s (protocol %s)\n", Version, s3p.VersionString(s3p.ProtocolVersion))
	},
}

// progressPrinter returns a walk/transfer progress callback that rewrites
// one status line.
func progressPrinter(cmd *cobra.Command, what string) func(done, total int) {
	start := time.Now()
	return func(done, total int) {
		if total <= 0 {
			return
		}
		cmd.Printf("\r%s %d of %d (%d%%)", what, done, total, done*100/total)
		if done == total {
			cmd.Printf(" in %v\n", time.Since(start).Round(time.Millisecond))
		}
	}
}
