package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/siakad/core/cmd/siakad/commands"
)

// @title SIAKAD Agent API
// @version 1.0
// @description Local sync agent for the SIAKAD student portal: tasks, messages, attendance reminders and the weekly schedule.

// @host 127.0.0.1:8787
// @BasePath /api/v1

func main() {
	rootCmd := &cobra.Command{
		Use:   "siakad",
		Short: "SIAKAD sync agent",
		Long:  `siakad keeps a local copy of a student's tasks, messages and courses, syncs them with the SIAKAD server and schedules attendance reminders.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewRegisterCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewPasswdCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
