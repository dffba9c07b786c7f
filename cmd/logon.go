package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/xdrprobe/client"
	"github.com/luma/xdrprobe/record"
	"github.com/luma/xdrprobe/schema/replicator"
)

var (
	logonVersion replicator.Version
	logonQuery   string
	logonAddr    string
	logonWait    string
)

func init() {
	flags := LogonCmd.Flags()

	flags.Uint32Var(&logonVersion.Major, "major", 1, "Major version to announce")
	flags.Uint32Var(&logonVersion.Minor, "minor", 1, "Minor version to announce")
	flags.Uint32Var(&logonVersion.Patch, "patch", 1, "Patch version to announce")
	flags.StringVarP(&logonAddr, "addr", "a", "", "The host:port of the server, overrides XDRPROBE_HOST/XDRPROBE_PORT")
	flags.StringVar(&logonWait, "ready-log", "", "Wait for the server to log SERVER_STARTED here before connecting")
	flags.StringVarP(&logonQuery, "query", "q", "", "Print only this gjson path of the response")
}

var LogonCmd = &cobra.Command{
	Use:   "logon",
	Short: "Send a LOGON and print the response",
	Long: `Send a LOGON and print the response

Usage
	xdrprobe logon --major 1 --minor 2 --patch 0

The response is printed as JSON. Exits non-zero if the server refuses the
LOGON.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		conf, log, err := setup(ctx)
		if err != nil {
			return err
		}
		defer log.Sync() // nolint:errcheck

		addr := conf.Addr()
		if logonAddr != "" {
			addr = logonAddr
		}

		readyLog := conf.ReadyLog
		if logonWait != "" {
			readyLog = logonWait
		}

		conn, err := client.Dial(ctx, client.Options{
			Addr:         addr,
			Codec:        replicator.ClientCodec(),
			DialTimeout:  conf.DialTimeout,
			ReadyLog:     readyLog,
			ReadyMarker:  conf.ReadyMarker,
			ReadyTimeout: conf.ReadyTimeout,
			Log:          log,
		})
		if err != nil {
			return err
		}

		defer func() {
			if serr := conn.Shutdown(); serr != nil {
				log.Warn("Connection did not shut down cleanly", zap.Error(serr))
			}
		}()

		id, err := conn.PutRequest(replicator.MakeLogon(logonVersion))
		if err != nil {
			return err
		}

		v, err := conn.GetResponse(ctx, id)
		if err != nil {
			return err
		}

		if err := printRecord(cmd, v, logonQuery); err != nil {
			return err
		}

		resp, err := replicator.ParseResponse(v)
		if err != nil {
			return err
		}

		if !resp.OK {
			return fmt.Errorf("Server refused LOGON %s", logonVersion)
		}

		return nil
	},
}

func printRecord(cmd *cobra.Command, v interface{}, query string) error {
	r, ok := v.(*record.Record)
	if !ok {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
		return err
	}

	if query == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), r.String())
		return err
	}

	result, err := r.Query(query)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), result.String())
	return err
}
