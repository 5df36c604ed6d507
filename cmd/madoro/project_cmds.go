package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/madorolabs/madoro/project"
)

var (
	createPath     string
	createDesc     string
	createTech     string
	createMaxTurns int
	deleteData     bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage registered projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := project.NewManager(basePath, project.WithLogger(logger))
		if err != nil {
			return err
		}
		active, _ := manager.Active()
		projects := manager.List()
		if len(projects) == 0 {
			fmt.Println("No projects registered. Use 'madoro project create <name>'.")
			return nil
		}
		for _, p := range projects {
			marker := "  "
			if p.ID == active.ID {
				marker = "* "
			}
			fmt.Printf("%s%-20s %s\n", marker, p.ID, p.Path)
		}
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := project.NewManager(basePath, project.WithLogger(logger))
		if err != nil {
			return err
		}
		path := createPath
		if path == "" {
			if path, err = os.Getwd(); err != nil {
				return err
			}
		}
		if path, err = filepath.Abs(path); err != nil {
			return err
		}
		p, err := manager.Create(args[0], path, createDesc, createTech, createMaxTurns)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Created project %s at %s\n", p.ID, p.Path)
		return nil
	},
}

var projectSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Make a project active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := project.NewManager(basePath, project.WithLogger(logger))
		if err != nil {
			return err
		}
		p, err := manager.Switch(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✅ Active project: %s (%s)\n", p.ID, p.Path)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a project from the registry",
	Long: `Removes the project from the registry. Project files are never touched;
pass --data to also delete madoro's stored memory for the project.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := project.NewManager(basePath, project.WithLogger(logger))
		if err != nil {
			return err
		}
		if err := manager.Delete(args[0], deleteData); err != nil {
			return err
		}
		fmt.Printf("✅ Deleted project %s\n", args[0])
		return nil
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&createPath, "path", "", "project directory (default current directory)")
	projectCreateCmd.Flags().StringVar(&createDesc, "desc", "", "project description")
	projectCreateCmd.Flags().StringVar(&createTech, "tech", "", "tech stack note stored in project settings")
	projectCreateCmd.Flags().IntVar(&createMaxTurns, "max-turns", 0, "conversation turns kept in memory (default 50)")
	projectDeleteCmd.Flags().BoolVar(&deleteData, "data", false, "also delete stored memory for the project")

	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectSwitchCmd, projectDeleteCmd)
}
