package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var body string

	cmd := &cobra.Command{
		Use:   "fetch <method> <endpoint>",
		Short: "Perform one authenticated call against the AJAX API.",
		Long: "Perform one authenticated call against the AJAX API.\n\n" +
			"Endpoints are prefixed with <base>/ajax/. A body, when given, must be JSON.",
		Example: "  ajaxctl fetch GET 'products?limit=1&page=1'\n" +
			`  ajaxctl fetch POST 'variants/123/channels' --body='{"channel":{"channel_id":321}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, endpoint := args[0], args[1]

			client, err := a.signIn(cmd.Context(), "v")
			if err != nil {
				return err
			}

			a.sink(fmt.Sprintf("Requesting: %s %s", method, endpoint), "v")
			resp, err := client.Fetch(cmd.Context(), method, endpoint, body)
			if err != nil {
				return err
			}
			a.printResponse(resp)

			a.sink("Done", "v")
			return nil
		},
	}

	cmd.Flags().StringVar(&body, "body", "", "JSON body of the request")

	return cmd
}
