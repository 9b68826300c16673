package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/core"
	"github.com/mikey/gmail-sweeper/internal/di"
	"github.com/mikey/gmail-sweeper/internal/factory"
	"github.com/mikey/gmail-sweeper/internal/policy"
	"github.com/mikey/gmail-sweeper/internal/utils"
	"go.uber.org/zap"
)

const maxSubjectLen = 120

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	switch args[0] {
	case "list-messages":
		err = container.Invoke(listMessages)
	case "check-config":
		err = container.Invoke(checkConfig)
	case "test-auth":
		err = container.Invoke(testAuth)
	case "count-addresses":
		err = container.Invoke(countAddresses)
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		return
	}

	if err != nil {
		fmt.Printf("Command failed: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Gmail sweeper - diagnostic utility")
	fmt.Println()
	fmt.Println("Usage: sweeper-util [flags] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list-messages    - List messages since the configured start date")
	fmt.Println("  check-config     - Validate configuration and policy files")
	fmt.Println("  test-auth        - Verify Gmail API authentication")
	fmt.Println("  count-addresses  - Scan mail and print all discovered addresses")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// listMessages prints the total message count and the subjects of the first 10
func listMessages(logger *zap.Logger, cfg *config.Config, mf *factory.MailFactory, tp *utils.TextProcessor) error {
	defer logger.Sync()
	ctx := context.Background()

	creds, err := cfg.GetCredentials()
	if err != nil {
		return err
	}

	client, err := mf.CreateMailClient(ctx)
	if err != nil {
		return err
	}

	refs, err := client.ListMessageRefs(ctx, creds.StartDate)
	if err != nil {
		return err
	}

	fmt.Printf("Messages found: %d\n\n", len(refs))
	if len(refs) == 0 {
		return nil
	}

	fmt.Println("First 10 messages:")
	for i, ref := range refs {
		if i >= 10 {
			break
		}

		msg, err := client.FetchMessage(ctx, ref)
		if err != nil {
			fmt.Printf("  %d. (failed to fetch: %v)\n", i+1, err)
			continue
		}

		subject := "(no subject)"
		for _, h := range msg.Headers {
			if h.Name == "Subject" {
				subject = tp.ProcessText(h.Value, maxSubjectLen)
				break
			}
		}
		fmt.Printf("  %d. %s\n", i+1, subject)
	}

	return nil
}

// checkConfig validates both config files and reports policy counts
func checkConfig(logger *zap.Logger, cfg *config.Config) error {
	defer logger.Sync()

	fmt.Println("Checking configuration...")
	fmt.Println()

	fmt.Println("Credentials record:")
	creds, err := cfg.GetCredentials()
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return err
	}
	fmt.Printf("  Domain: %s\n", creds.Domain)
	fmt.Printf("  Check interval: %s\n", creds.CheckInterval)
	fmt.Printf("  Start date: %s\n", creds.StartDate.Format("2006-01-02"))

	fmt.Println()

	sweepCfg, err := cfg.GetSweep()
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return err
	}

	fmt.Printf("Policy record (%s):\n", sweepCfg.PolicyPath)
	record, err := policy.Load(sweepCfg.PolicyPath)
	if err != nil {
		fmt.Printf("  Error: %v (the file may not have been created yet)\n", err)
		return nil
	}

	allowed, blocked := record.Counts()
	fmt.Printf("  Addresses: %d\n", record.Len())
	fmt.Printf("  Allowed: %d\n", allowed)
	fmt.Printf("  Blocked: %d\n", blocked)

	if blocked > 0 {
		fmt.Println()
		fmt.Println("  Blocked addresses:")
		for _, addr := range record.BlockedAddresses() {
			fmt.Printf("    - %s@%s\n", addr, creds.Domain)
		}
	}

	return nil
}

// testAuth verifies that Gmail API authentication succeeds
func testAuth(logger *zap.Logger, cfg *config.Config, mf *factory.MailFactory) error {
	defer logger.Sync()

	fmt.Println("Checking Gmail API authentication...")
	if _, err := mf.CreateMailClient(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
		return err
	}

	fmt.Println("Authentication succeeded")
	return nil
}

// countAddresses scans mail since the start date and prints every discovered address
func countAddresses(logger *zap.Logger, cfg *config.Config, mf *factory.MailFactory) error {
	defer logger.Sync()
	ctx := context.Background()

	creds, err := cfg.GetCredentials()
	if err != nil {
		return err
	}

	client, err := mf.CreateMailClient(ctx)
	if err != nil {
		return err
	}

	sweeper := core.NewSweepService(client, nil, logger, creds.Domain, core.ActionDelete, "", false, 0)
	addresses, err := sweeper.DiscoverAddresses(ctx, creds.StartDate)
	if err != nil {
		return err
	}

	fmt.Printf("Unique addresses found: %d\n\n", len(addresses))
	fmt.Println("Address list:")
	for _, addr := range addresses {
		fmt.Printf("  - %s@%s\n", addr, creds.Domain)
	}

	return nil
}
