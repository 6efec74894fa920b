package main

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:     "login <donor|hospital|admin>",
		Short:   "Log in and keep the session token",
		Example: `  bloodlink login admin --email admin@bloodlink.org --password secret`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Token   string `json:"token"`
				Message string `json:"message"`
			}
			client := newAPIClient(opts)
			err := client.do(http.MethodPost, "/auth/login/"+args[0],
				map[string]string{"email": email, "password": password}, &result)
			if err != nil {
				return err
			}
			if err := saveToken(opts.tokenFile, result.Token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", result.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.Remove(opts.tokenFile); err != nil && !os.IsNotExist(err) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

type hospitalRow struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	City         string `json:"city"`
	License      string `json:"licenseNumber"`
	IsVerified   bool   `json:"isVerified"`
	RequestsMade int    `json:"requestsMade"`
}

func newHospitalsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospitals",
		Short: "Review and verify hospitals (admin)",
	}

	var unverified bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List hospitals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/admin/hospitals"
			if unverified {
				path = "/admin/unverified-hospitals"
			}
			var hospitals []hospitalRow
			if err := newAPIClient(opts).do(http.MethodGet, path, nil, &hospitals); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCITY\tLICENSE\tVERIFIED\tREQUESTS")
			for _, h := range hospitals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n", h.ID, h.Name, h.City, h.License, h.IsVerified, h.RequestsMade)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&unverified, "unverified", false, "only hospitals awaiting verification")

	cmd.AddCommand(list)
	cmd.AddCommand(newVerifyCmd(opts, "verify", "/admin/verify-hospital/", "Mark a hospital as verified"))
	cmd.AddCommand(newVerifyCmd(opts, "unverify", "/admin/unverify-hospital/", "Revoke a hospital's verification"))
	return cmd
}

func newVerifyCmd(opts *rootOptions, use, path, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <hospital-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Message string `json:"message"`
			}
			if err := newAPIClient(opts).do(http.MethodPost, path+args[0], nil, &result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", result.Message)
			return nil
		},
	}
}

func newRequestsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Oversee blood requests (admin)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every blood request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reqs []struct {
				ID         string   `json:"id"`
				HospitalID string   `json:"hospitalId"`
				BloodType  string   `json:"bloodType"`
				Urgent     bool     `json:"urgent"`
				Status     string   `json:"status"`
				Notified   []string `json:"notifiedDonors"`
			}
			if err := newAPIClient(opts).do(http.MethodGet, "/admin/blood-requests", nil, &reqs); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tHOSPITAL\tTYPE\tURGENT\tSTATUS\tNOTIFIED")
			for _, r := range reqs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%d\n", r.ID, r.HospitalID, r.BloodType, r.Urgent, r.Status, len(r.Notified))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Cancel a pending or accepted request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient(opts).do(http.MethodPost, "/admin/blood-requests/"+args[0]+"/cancel", nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Request %s cancelled\n", args[0])
			return nil
		},
	})
	return cmd
}
