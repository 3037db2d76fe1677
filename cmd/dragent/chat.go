package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	dragent "github.com/cjsstech/changi-dr-agent"
	"github.com/cjsstech/changi-dr-agent/internal/config"
	"github.com/cjsstech/changi-dr-agent/internal/presentation/tui"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a workflow or a single agent from the terminal",
	Long:  `Starts an interactive chat session. Pass --workflow to run a full workflow graph per turn, or --agent to talk to one agent directly.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		workflowID, _ := cmd.Flags().GetString("workflow")
		agentID, _ := cmd.Flags().GetString("agent")
		sessionID, _ := cmd.Flags().GetString("session")

		if (workflowID == "") == (agentID == "") {
			fmt.Println("Error: exactly one of --workflow or --agent is required.")
			os.Exit(1)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}

		svc, err := dragent.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Printf("Error initializing service: %v\n", err)
			os.Exit(1)
		}
		defer svc.Close()

		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		tui.PrintBanner()
		fmt.Printf("Session %s. Type your message, or /quit to exit.\n\n", sessionID)

		if err := runChatLoop(cmd.Context(), svc, workflowID, agentID, sessionID); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("workflow", "w", "", "Workflow id to execute each turn")
	chatCmd.Flags().String("agent", "", "Agent id to chat with directly")
	chatCmd.Flags().StringP("session", "s", "", "Session id to resume (defaults to a fresh one)")
}

func runChatLoop(ctx context.Context, svc *dragent.Service, workflowID, agentID, sessionID string) error {
	render := tui.NewRenderer()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		reply, err := runTurn(ctx, svc, workflowID, agentID, sessionID, line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}

		out, err := render(reply)
		if err != nil {
			out = reply
		}
		fmt.Println(out)
	}
}

func runTurn(ctx context.Context, svc *dragent.Service, workflowID, agentID, sessionID, message string) (string, error) {
	convo, err := svc.Sessions.LoadOrStart(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var result *domain.ExecutionResult
	if workflowID != "" {
		result, err = svc.Executor.Execute(ctx, workflowID, message, convo)
		if err != nil {
			return "", err
		}
	} else {
		runner, err := svc.Executor.Runner(ctx, agentID)
		if err != nil {
			return "", err
		}
		res, err := runner.Run(ctx, message, convo.History, convo.Metadata)
		if err != nil {
			return "", err
		}
		result = &domain.ExecutionResult{
			Response: res.Text,
			Success:  true,
			Messages: append(append([]domain.Message(nil), convo.History...),
				domain.AssistantMessage(agentID, res.Text)),
			Metadata: res.Metadata,
		}
	}

	if err := svc.Sessions.RecordTurn(ctx, sessionID, message, result); err != nil {
		svc.Logger.Warn("failed to persist session turn", "session", sessionID, "err", err)
	}
	return result.Response, nil
}
