package main

import (
	"encoding/json"
	"errors"
	"time"

	"gavlik-capital/internal/client/authclient"
	"gavlik-capital/internal/types"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.client.Logout(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Signed out\n")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if !s.client.IsAuthenticated(ctx) {
				printf(cmd.OutOrStdout(), "Not signed in\n")
				return nil
			}

			user := s.client.CurrentUser(ctx)
			if remote {
				if user, err = s.client.GetProfile(ctx); err != nil {
					return err
				}
			}
			return printUser(cmd, user)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the profile from the server instead of local storage")
	return cmd
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update profile fields of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := profileRequestFromFlags(cmd)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			user, err := s.client.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printUser(cmd, user)
		},
	}

	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("first-name", "", "first name")
	cmd.Flags().String("last-name", "", "last name")
	cmd.Flags().String("avatar", "", "avatar URL")
	cmd.Flags().String("bio", "", "short bio")
	return cmd
}

// profileRequestFromFlags 只提交显式设置过的字段
func profileRequestFromFlags(cmd *cobra.Command) (*types.ProfileUpdateRequest, error) {
	req := &types.ProfileUpdateRequest{}
	fields := map[string]**string{
		"username":   &req.Username,
		"first-name": &req.FirstName,
		"last-name":  &req.LastName,
		"avatar":     &req.Avatar,
		"bio":        &req.Bio,
	}
	for name, dst := range fields {
		if !cmd.Flags().Changed(name) {
			continue
		}
		value, err := cmd.Flags().GetString(name)
		if err != nil {
			return nil, err
		}
		*dst = &value
	}
	if req.IsEmpty() {
		return nil, errors.New("no profile fields given")
	}
	return req, nil
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.client.Refresh(cmd.Context())
			if err != nil {
				if authclient.IsUnauthorized(err) {
					printf(cmd.OutOrStdout(), "Session expired, run 'walletctl login' again\n")
					return errReported
				}
				return err
			}
			expires := time.Now().Add(time.Duration(resp.Tokens.ExpiresIn) * time.Second)
			printf(cmd.OutOrStdout(), "Session refreshed for %s, expires %s\n", resp.User.WalletAddress, expires.Format(time.RFC3339))
			return nil
		},
	}
}

func printUser(cmd *cobra.Command, user *types.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "%s\n", data)
	return nil
}
