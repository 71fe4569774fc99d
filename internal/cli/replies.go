package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nurtureai/nurture-go/internal/mail"
	"github.com/nurtureai/nurture-go/internal/reply"
)

var (
	processLimit int
	processForce bool
)

var repliesCmd = &cobra.Command{
	Use:   "replies",
	Short: "Process customer email replies",
}

var repliesProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Process pending customer replies once",
	Long: `Process runs one pass over unhandled customer replies: each is
classified and then either escalated to the sales team or answered by
the agent.

Examples:
  nurture replies process
  nurture replies process --limit 10
  nurture replies process --force`,
	RunE: runRepliesProcess,
}

var repliesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously capture and process replies",
	Long: `Watch checks the IMAP inbox for new customer replies and processes
pending conversations on a fixed interval. Runs until interrupted.`,
	RunE: runRepliesWatch,
}

func init() {
	repliesProcessCmd.Flags().IntVarP(&processLimit, "limit", "n", 50, "maximum conversations to process")
	repliesProcessCmd.Flags().BoolVar(&processForce, "force", false, "reprocess already-handled conversations")

	repliesCmd.AddCommand(repliesProcessCmd)
	repliesCmd.AddCommand(repliesWatchCmd)
}

func runRepliesProcess(cmd *cobra.Command, args []string) error {
	service, err := getReplyService()
	if err != nil {
		return err
	}

	result, err := service.ProcessPending(cmd.Context(), processLimit, processForce)
	if err != nil {
		return err
	}

	if result.Total == 0 {
		fmt.Println("No pending conversations to process.")
		return nil
	}
	fmt.Printf("Completed: %d processed, %d skipped, %d errors\n",
		result.Processed, result.Skipped, result.Errors)
	return nil
}

func runRepliesWatch(cmd *cobra.Command, args []string) error {
	service, err := getReplyService()
	if err != nil {
		return err
	}

	var inbox reply.InboxChecker
	if cfg.IMAPUser != "" {
		inbox = mail.NewInboxReader(cfg, st)
	} else {
		fmt.Println("IMAP not configured, processing already-captured replies only")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching for replies every %s. Press Ctrl+C to stop.\n", cfg.WatchInterval)
	reply.NewWatcher(service, inbox, cfg).Run(ctx)
	return nil
}
