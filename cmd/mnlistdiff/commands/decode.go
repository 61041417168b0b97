package commands

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	dashparams "github.com/1NF1N18Y/dash/config/params"
	"github.com/1NF1N18Y/dash/evo"
)

var (
	network  string
	extended bool
	validate bool
)

// DecodeCmd reads a hex-encoded simplified masternode list diff from a file
// (or stdin) and prints it as JSON.
var DecodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a hex-encoded masternode list diff to JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := dashparams.ByName(network)
		if params == nil {
			return fmt.Errorf("unknown network %q", network)
		}

		in := io.Reader(os.Stdin)
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		raw, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		encoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return fmt.Errorf("decode hex input: %w", err)
		}

		diff := new(evo.SimplifiedMNListDiff)
		if err := diff.Deserialize(bytes.NewReader(encoded)); err != nil {
			return fmt.Errorf("decode diff: %w", err)
		}
		logger.Debug("decoded diff",
			"version", diff.Version,
			"updated", len(diff.MNList), "deleted", len(diff.DeletedMNs),
			"new_quorums", len(diff.NewQuorums))

		if validate {
			if err := diff.ValidateBasic(); err != nil {
				return fmt.Errorf("invalid diff: %w", err)
			}
		}

		bz, err := diff.ToJSON(params.AddrParams, extended)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, bz, "", "  "); err != nil {
			return err
		}
		fmt.Println(pretty.String())
		return nil
	},
}

func init() {
	DecodeCmd.Flags().StringVar(&network, "network", dashparams.MainNet.Name, "Network the diff belongs to (mainnet, testnet, regtest)")
	DecodeCmd.Flags().BoolVar(&extended, "extended", false, "Include payout address fields")
	DecodeCmd.Flags().BoolVar(&validate, "validate", false, "Run stateless validation before printing")
}
