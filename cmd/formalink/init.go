package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nikoraes/formalink/internal/config"
	"github.com/nikoraes/formalink/internal/scene"
)

var (
	initForce bool
	initStage string
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a formalink project",
	Long: `Prepare a directory for running the bridge.

This command:
  - Creates the scene store and picker signal directories
  - Verifies the scene store can be opened
  - Writes a .formalink.yaml template

Examples:
  formalink init
  formalink init ./site --stage omniverse://localhost/Projects/site.usd
  formalink init --force   # overwrite an existing .formalink.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .formalink.yaml")
	initCmd.Flags().StringVar(&initStage, "stage", "", "Document to open as the active stage")
}

const projectTemplate = `# formalink project configuration.
# Values here override ~/.config/formalink/config.yaml.
server:
  host: 127.0.0.1
  port: 8011
stage:
  path: %q
log:
  level: info
# nats:
#   url: nats://localhost:4222
#   subject_prefix: formalink
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	out := cmd.OutOrStdout()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := scene.Open(cfg.Store.Path)
	if err != nil {
		printCheck(out, "✗", fmt.Sprintf("Scene store %s: %v", cfg.Store.Path, err), color.FgRed)
		return err
	}
	store.Close()
	printCheck(out, "✓", "Scene store ready at "+cfg.Store.Path, color.FgGreen)

	if err := os.MkdirAll(cfg.Picker.SignalDir, 0755); err != nil {
		printCheck(out, "⚠", fmt.Sprintf("Picker signal directory %s: %v", cfg.Picker.SignalDir, err), color.FgYellow)
	} else {
		printCheck(out, "✓", "Picker signals in "+cfg.Picker.SignalDir, color.FgGreen)
	}

	projectFile := filepath.Join(absPath, config.ProjectConfigName)
	if _, err := os.Stat(projectFile); err == nil && !initForce {
		printCheck(out, "⚠", config.ProjectConfigName+" already exists (use --force to overwrite)", color.FgYellow)
	} else {
		if err := os.WriteFile(projectFile, []byte(fmt.Sprintf(projectTemplate, initStage)), 0644); err != nil {
			return fmt.Errorf("write %s: %w", projectFile, err)
		}
		printCheck(out, "✓", "Created "+projectFile, color.FgGreen)
	}

	if initStage == "" {
		printCheck(out, "⚠", "No stage set; link requests will not apply changes until stage.path is configured", color.FgYellow)
	}

	fmt.Fprintf(out, "\n%s Run 'formalink serve' in %s to start the bridge.\n", color.GreenString("✓"), absPath)
	return nil
}

// printCheck prints a status line with color
func printCheck(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
