package commands

import (
	gwhttp "github.com/paradigmatech/gos3p/pkg/gateway/http"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the node as a REST gateway",
	Long: `Serve a small JSON-over-HTTP gateway in front of the node so tooling
without serial access can read and write registers, transfer VMEM ranges,
and browse metadata.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		gw := gwhttp.NewGatewayServer(mgr, log.StandardLogger())
		return gw.ListenAndServe(viper.GetString("listen"))
	},
}

func init() {
	serveCmd.Flags().String("listen", ":8090", "address to listen on")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}
