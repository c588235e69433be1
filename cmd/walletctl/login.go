package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gavlik-capital/internal/client/orchestrator"
	"gavlik-capital/internal/client/ui"
	"gavlik-capital/internal/client/wallet"
	"gavlik-capital/internal/types"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		privateKey  string
		autoApprove bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect the wallet and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			notifier := ui.NewNotifier(out)
			router := ui.NewRouter(out)

			if !cmd.Flags().Changed("private-key") {
				privateKey = s.cfg.Client.Wallet.PrivateKey
			}
			if !cmd.Flags().Changed("yes") {
				autoApprove = s.cfg.Client.Wallet.AutoApprove
			}
			approver := wallet.PromptApprover(cmd.InOrStdin(), out)
			if autoApprove {
				approver = wallet.AutoApprove
			}
			provider, err := wallet.NewKeyProviderFromHex(privateKey, s.cfg.Client.Wallet.ChainID, approver)
			if err != nil {
				return err
			}
			adapter := wallet.NewAdapter(provider)

			settled := make(chan error, 1)
			ocfg := orchestrator.ConfigFromClient(s.cfg)
			ocfg.OnSettled = func(_ *types.VerifyResponse, err error) {
				select {
				case settled <- err:
				default:
				}
			}
			orch := orchestrator.New(s.client, adapter, notifier, router, ocfg)
			defer orch.Close()

			if orch.Restore(ctx) {
				printf(out, "Already signed in as %s\n", orch.User().WalletAddress)
				return nil
			}

			runCtx, stop := context.WithCancel(ctx)
			defer stop()
			go func() { _ = orch.Run(runCtx) }()

			printf(out, "Connecting wallet %s on chain %d\n", provider.Address(), s.cfg.Client.Wallet.ChainID)
			adapter.Login(ctx)

			select {
			case err := <-settled:
				if err != nil {
					return errReported
				}
			case <-time.After(timeout):
				stop()
				orch.Wait()
				return fmt.Errorf("sign-in did not complete within %s", timeout)
			case <-ctx.Done():
				stop()
				orch.Wait()
				return ctx.Err()
			}

			orch.Wait()
			if user := orch.User(); user != nil {
				printf(out, "Signed in as %s (user %s)\n", user.WalletAddress, user.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&privateKey, "private-key", "", "hex private key of the wallet (default: client.wallet.private_key, or a new ephemeral key)")
	cmd.Flags().BoolVarP(&autoApprove, "yes", "y", false, "approve the signature request without prompting")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "maximum time to wait for sign-in")
	return cmd
}
