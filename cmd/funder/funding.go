package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	clientID      string
	satoshi       uint64
	numOfOutputs  uint32
	multiTx       bool
	lockingScript string

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "get daemon status",
		Long: "this command returns the version of the daemon, the status of " +
			"its connection with the blockchain and the time of the last update",
		RunE: status,
	}
	balanceCmd = &cobra.Command{
		Use:   "balance <client_id>",
		Short: "get the balance of a client",
		Long: "this command returns the confirmed and unconfirmed balance of " +
			"the wallet of the given client, in satoshis and BSV",
		Args: cobra.ExactArgs(1),
		RunE: balance,
	}
	addressCmd = &cobra.Command{
		Use:   "address <client_id>",
		Short: "get the address of a client",
		Long:  "this command returns the address of the wallet of the given client",
		Args:  cobra.ExactArgs(1),
		RunE:  address,
	}
	fundCmd = &cobra.Command{
		Use:   "fund",
		Short: "fund outputs with a client's wallet",
		Long: "this command lets you create one or more outputs of the given " +
			"amount locked by the given script, funded by the wallet of the " +
			"given client",
		RunE: fund,
	}
)

func init() {
	fundCmd.Flags().StringVar(&clientID, "client", "", "id of the client funding the outputs")
	fundCmd.Flags().Uint64Var(&satoshi, "satoshi", 0, "amount of every output in satoshis")
	fundCmd.Flags().Uint32Var(&numOfOutputs, "outpoints", 1, "number of outputs to create")
	fundCmd.Flags().BoolVar(&multiTx, "multi-tx", false, "create every output in its own transaction")
	fundCmd.Flags().StringVar(&lockingScript, "script", "", "hex encoded locking script of the outputs")
	// nolint
	fundCmd.MarkFlagRequired("client")
	// nolint
	fundCmd.MarkFlagRequired("satoshi")
	// nolint
	fundCmd.MarkFlagRequired("script")
}

func status(_ *cobra.Command, _ []string) error {
	resp, err := doRequest(http.MethodGet, "/status", nil)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func balance(_ *cobra.Command, args []string) error {
	path := fmt.Sprintf("/client/%s/balance", url.PathEscape(args[0]))
	resp, err := doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var b struct {
		Confirmed   uint64 `json:"confirmed"`
		Unconfirmed uint64 `json:"unconfirmed"`
	}
	if err := json.Unmarshal([]byte(resp), &b); err != nil {
		return fmt.Errorf("failed to parse response: %s", err)
	}

	buf, _ := json.MarshalIndent(map[string]interface{}{
		"confirmed":       b.Confirmed,
		"unconfirmed":     b.Unconfirmed,
		"confirmed_bsv":   formatBsv(b.Confirmed),
		"unconfirmed_bsv": formatBsv(b.Unconfirmed),
		"total_bsv":       formatBsv(b.Confirmed + b.Unconfirmed),
	}, "", "  ")
	fmt.Println(string(buf))
	return nil
}

func address(_ *cobra.Command, args []string) error {
	path := fmt.Sprintf("/client/%s/address", url.PathEscape(args[0]))
	resp, err := doRequest(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func fund(_ *cobra.Command, _ []string) error {
	resp, err := doRequest(http.MethodPost, "/fund", map[string]interface{}{
		"client_id":       clientID,
		"satoshi":         satoshi,
		"no_of_outpoints": numOfOutputs,
		"multiple_tx":     multiTx,
		"locking_script":  lockingScript,
	})
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}
