package main

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	clientAddCmd = &cobra.Command{
		Use:   "add <client_id> <wif_key>",
		Short: "add a client",
		Long: "this command lets you add a client served by the daemon with the " +
			"wallet of the given WIF key. The client is persisted by the daemon",
		Args: cobra.ExactArgs(2),
		RunE: clientAdd,
	}
	clientDeleteCmd = &cobra.Command{
		Use:   "delete <client_id>",
		Short: "delete a client",
		Long:  "this command lets you stop serving the given client",
		Args:  cobra.ExactArgs(1),
		RunE:  clientDelete,
	}
	clientCmd = &cobra.Command{
		Use:   "client",
		Short: "manage the clients served by the daemon",
	}
)

func init() {
	clientCmd.AddCommand(clientAddCmd, clientDeleteCmd)
}

func clientAdd(_ *cobra.Command, args []string) error {
	if _, err := doRequest(http.MethodPost, "/client", map[string]string{
		"client_id": args[0],
		"wif_key":   args[1],
	}); err != nil {
		return err
	}
	fmt.Printf("client %s has been added\n", args[0])
	return nil
}

func clientDelete(_ *cobra.Command, args []string) error {
	path := fmt.Sprintf("/client/%s", url.PathEscape(args[0]))
	if _, err := doRequest(http.MethodDelete, path, nil); err != nil {
		return err
	}
	fmt.Printf("client %s has been deleted\n", args[0])
	return nil
}
