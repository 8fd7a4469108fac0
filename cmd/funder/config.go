package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	daemonUrl string

	configSetCmd = &cobra.Command{
		Use:   "set",
		Short: "edit single CLI config entry",
		Long: "this command lets you customize a single configuration entry of " +
			"the funder CLI",
		Args: cobra.ExactArgs(2),
		RunE: configSet,
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "edit multiple CLI config entries",
		Long: "this command lets you customize multiple configuration entries of " +
			"the funder CLI",
		RunE: configInit,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "print or edit CLI configuration",
		Long: "this command lets you show or customize the configuration of " +
			"the funder CLI",
		RunE: configPrint,
	}
)

func init() {
	configInitCmd.Flags().StringVar(
		&daemonUrl, "daemon-url", initialState["daemon_url"],
		"url of the funderd REST interface to connect to",
	)
	configCmd.AddCommand(configSetCmd, configInitCmd)
}

func configSet(_ *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	if _, ok := initialState[key]; !ok {
		return fmt.Errorf("unknown config entry %s", key)
	}
	if key == "daemon_url" {
		if err := validateUrl(value); err != nil {
			return err
		}
	}

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Printf("%s %s has been set\n", key, value)
	return nil
}

func configInit(_ *cobra.Command, _ []string) error {
	if err := validateUrl(daemonUrl); err != nil {
		return err
	}
	if err := setState(map[string]string{"daemon_url": daemonUrl}); err != nil {
		return err
	}

	fmt.Println("CLI has been configured")
	return nil
}

func configPrint(_ *cobra.Command, _ []string) error {
	state, err := getState()
	if err != nil {
		return err
	}

	buf, _ := json.MarshalIndent(state, "", "   ")
	fmt.Println(string(buf))
	return nil
}

func validateUrl(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid daemon url: %s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid daemon url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid daemon url: missing host")
	}
	return nil
}
