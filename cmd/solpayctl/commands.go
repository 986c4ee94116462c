package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	httpd "solpay_gateway/internal/delivery/http"
	"solpay_gateway/internal/poller"
)

func requestCmd(opts *clientOptions) *cobra.Command {
	var req httpd.CreatePaymentReq
	var amount string
	var wait bool

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Create a payment request and print its URL and reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Amount = httpd.Amount(amount)

			var resp httpd.CreatePaymentResp
			if err := opts.postJSON(cmd.Context(), "/api/v1/pay", req, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "url:       %s\n", resp.URL)
			fmt.Fprintf(out, "reference: %s\n", resp.Reference)
			fmt.Fprintf(out, "amount:    %s %s\n", resp.Amount, resp.Currency)

			if !wait {
				return nil
			}
			return runPoll(cmd, poller.New(poller.NewHTTPVerifier(opts.server, nil)), resp.Reference)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Recipient, "recipient", "", "recipient wallet address")
	f.StringVar(&amount, "amount", "", "amount in --currency units")
	f.StringVar(&req.Currency, "currency", "SOL", "SOL, USDC, USDT, KES or USD")
	f.StringVar(&req.Label, "label", "", "merchant label")
	f.StringVar(&req.Message, "message", "", "message shown to the payer")
	f.StringVar(&req.Memo, "memo", "", "memo stored with the transaction")
	f.BoolVar(&wait, "wait", false, "poll for verification after creating the request")
	cmd.MarkFlagRequired("recipient")
	cmd.MarkFlagRequired("amount")

	return cmd
}

func verifyCmd(opts *clientOptions) *cobra.Command {
	var attempts int
	var timeout, step time.Duration

	cmd := &cobra.Command{
		Use:   "verify <reference>",
		Short: "Poll the server until the payment is verified or retries run out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := poller.New(poller.NewHTTPVerifier(opts.server, nil))
			p.MaxAttempts = attempts
			p.AttemptTimeout = timeout
			p.Backoff = poller.LinearBackoff(step)
			return runPoll(cmd, p, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVar(&attempts, "attempts", poller.DefaultMaxAttempts, "maximum verification attempts")
	f.DurationVar(&timeout, "timeout", poller.DefaultAttemptTimeout, "timeout per attempt")
	f.DurationVar(&step, "backoff", 2*time.Second, "backoff step; attempt n waits n*step")

	return cmd
}

func runPoll(cmd *cobra.Command, p *poller.Poller, reference string) error {
	out, err := p.Poll(cmd.Context(), reference)
	if err != nil {
		var pe *poller.PollError
		if errors.As(err, &pe) {
			return errors.New(pe.Message())
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "verified: %s\n", out.Signature)
	return nil
}

func ratesCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rates",
		Short: "Show the exchange rates used for currency conversion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r httpd.RatesResp
			if err := opts.getJSON(cmd.Context(), "/api/v1/rates", &r); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SOL  %.4f USD\n", r.SOL)
			fmt.Fprintf(out, "USDC %.4f USD\n", r.USDC)
			fmt.Fprintf(out, "USDT %.4f USD\n", r.USDT)
			fmt.Fprintf(out, "KES  %.2f per USD\n", r.KES)
			fmt.Fprintf(out, "updated %s\n", r.LastUpdated)
			if r.Error != "" {
				fmt.Fprintf(out, "warning: %s\n", r.Error)
			}
			return nil
		},
	}
}
