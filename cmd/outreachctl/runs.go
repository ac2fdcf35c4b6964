package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/workflows"
)

var (
	campaignBrief     string
	campaignSender    string
	campaignRecipient string
	campaignNoWait    bool

	replyFrom    string
	replySubject string
	replyText    string
	replyNoWait  bool

	deliverText        string
	deliverSubject     string
	deliverSender      string
	deliverRecipient   string
	deliverContentType string
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage campaign runs",
}

var campaignRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate, select and send one outreach email",
	Long: `Start a campaign run for a brief and, unless --no-wait is given, wait
for the delivery receipt.

Examples:
  outreachctl campaign run --brief "Analytics suite for retail"
  outreachctl campaign run --brief "..." --recipient cto@prospect.test --no-wait`,
	RunE: runCampaign,
}

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Manage reply runs",
}

var replySendCmd = &cobra.Command{
	Use:   "send",
	Short: "Answer an inbound email as the webhook would",
	RunE:  runReply,
}

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Send an already written text through the delivery pipeline",
	RunE:  runDeliver,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect runs",
}

var runsGetCmd = &cobra.Command{
	Use:   "get RUN_ID",
	Short: "Show the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	campaignRunCmd.Flags().StringVar(&campaignBrief, "brief", "", "Campaign brief (required)")
	campaignRunCmd.Flags().StringVar(&campaignSender, "sender", "", "Sender address (default from config)")
	campaignRunCmd.Flags().StringVar(&campaignRecipient, "recipient", "", "Recipient address (default from config)")
	campaignRunCmd.Flags().BoolVar(&campaignNoWait, "no-wait", false, "Print the run ID and exit")
	_ = campaignRunCmd.MarkFlagRequired("brief")
	campaignCmd.AddCommand(campaignRunCmd)

	replySendCmd.Flags().StringVar(&replyFrom, "from", "", "Inbound sender, e.g. \"Jane <jane@prospect.test>\" (required)")
	replySendCmd.Flags().StringVar(&replySubject, "subject", "", "Inbound subject")
	replySendCmd.Flags().StringVar(&replyText, "text", "", "Inbound body (required)")
	replySendCmd.Flags().BoolVar(&replyNoWait, "no-wait", false, "Print the run ID and exit")
	_ = replySendCmd.MarkFlagRequired("from")
	_ = replySendCmd.MarkFlagRequired("text")
	replyCmd.AddCommand(replySendCmd)

	deliverCmd.Flags().StringVar(&deliverText, "text", "", "Text to send (required)")
	deliverCmd.Flags().StringVar(&deliverSubject, "subject", "", "Subject; synthesized when empty")
	deliverCmd.Flags().StringVar(&deliverSender, "sender", "", "Sender address (default from config)")
	deliverCmd.Flags().StringVar(&deliverRecipient, "recipient", "", "Recipient address (default from config)")
	deliverCmd.Flags().StringVar(&deliverContentType, "content-type", "html", "html or text")
	_ = deliverCmd.MarkFlagRequired("text")

	runsCmd.AddCommand(runsGetCmd)
}

func runCampaign(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	svc, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	req := service.CampaignRequest{Brief: campaignBrief, Sender: campaignSender, Recipient: campaignRecipient}
	if campaignNoWait {
		run, err := svc.StartCampaign(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), run.GetID())
		return nil
	}
	res, err := svc.RunCampaign(ctx, req)
	if err != nil {
		return describeFailure(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runReply(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	svc, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	e := service.InboundEmail{From: replyFrom, Subject: replySubject, Text: replyText}
	if replyNoWait {
		runID, duplicate, err := svc.SubmitReply(ctx, e)
		if err != nil {
			return err
		}
		if duplicate {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (already started)\n", runID)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), runID)
		return nil
	}
	res, duplicate, err := svc.RunReply(ctx, e)
	if err != nil {
		return describeFailure(err)
	}
	if duplicate {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already started; use runs get to follow it\n", service.ReplyRunID(e))
		return nil
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runDeliver(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	svc, closeFn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := svc.Deliver(ctx, service.DeliveryRequest{
		SelectedText: deliverText,
		Sender:       deliverSender,
		Recipient:    deliverRecipient,
		Subject:      deliverSubject,
		ContentType:  deliverContentType,
	})
	if err != nil {
		return describeFailure(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runGet(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	state, err := svc.RunState(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), state)
}

func describeFailure(err error) error {
	if oe, ok := workflows.AsOrchestrationError(err); ok {
		if oe.Stage != "" {
			return fmt.Errorf("%s at %s: %s", oe.Kind, oe.Stage, oe.Detail)
		}
		return fmt.Errorf("%s: %s", oe.Kind, oe.Detail)
	}
	return err
}
