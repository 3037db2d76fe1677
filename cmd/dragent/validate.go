package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cjsstech/changi-dr-agent/internal/compiler"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Check a workflow definition for consistency",
	Long:  `Reads a workflow definition (JSON or YAML) and reports structural problems: missing agents, dangling edges, duplicate ids.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, err := loadDefinition(args[0])
		if err != nil {
			fmt.Printf("Error reading workflow: %v\n", err)
			os.Exit(1)
		}

		problems := compiler.Validate(def)
		if len(problems) > 0 {
			fmt.Println("Validation failed:")
			for _, p := range problems {
				fmt.Printf("  - %s\n", p)
			}
			os.Exit(1)
		}
		fmt.Println("Workflow is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// loadDefinition reads a workflow definition from disk, picking the codec
// by file extension.
func loadDefinition(path string) (*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def domain.WorkflowDefinition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return &def, nil
}
