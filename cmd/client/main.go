// Command client runs the service booking client shell and its audit
// consumer.
package main

import (
    "fmt"
    "os"

    "github.com/joho/godotenv"
    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
    Use:   "client",
    Short: "Service booking client: sessions and role-gated views",
    PersistentPreRun: func(cmd *cobra.Command, args []string) {
        // A missing .env is fine; the environment may already be set.
        _ = godotenv.Load()
    },
}

func init() {
    rootCmd.AddCommand(serveCmd, auditCmd)
}

func main() {
    if err := rootCmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}
