// Package cli provides command-line interface setup and configuration
// for the lingogate application. It handles flag parsing, command
// creation, and configuration management using cobra, viper and godotenv.
package cli
