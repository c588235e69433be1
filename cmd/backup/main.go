package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gavlik-capital/internal/config"
	"gavlik-capital/pkg/database"
	"gavlik-capital/pkg/logger"
)

func main() {
	var (
		action     = flag.String("action", "", "Action Type: backup, restore, validate, info")
		backupPath = flag.String("file", "", "Backup File Path")
		clearData  = flag.Bool("clear", false, "Clear Existing Users When Restore")
		conflict   = flag.String("conflict", "skip", "Conflict Resolution Strategy: skip, replace, error")
		yes        = flag.Bool("yes", false, "Skip Confirmation Prompt")
		help       = flag.Bool("help", false, "Show Help")
	)
	flag.Parse()

	if *help || *action == "" {
		showHelp()
		return
	}

	logger.Init(logger.DefaultConfig())
	defer logger.Sync()

	// info 与 validate 只读取文件，不需要数据库
	bm := database.NewBackupManager(nil)
	switch *action {
	case "validate":
		handleValidate(bm, *backupPath)
		return
	case "info":
		handleInfo(bm, *backupPath)
		return
	case "backup", "restore":
	default:
		fmt.Printf("Error: Unsupported action '%s'\n", *action)
		showHelp()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresConnection(&cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", err)
		os.Exit(1)
	}
	bm = database.NewBackupManager(db)

	ctx := context.Background()
	if *action == "backup" {
		handleBackup(ctx, bm, *backupPath)
		return
	}
	handleRestore(ctx, bm, *backupPath, *clearData, *conflict, *yes)
}

func handleBackup(ctx context.Context, bm *database.BackupManager, backupPath string) {
	if backupPath == "" {
		backupPath = fmt.Sprintf("./backups/gavlik_users_%s.json", time.Now().Format("20060102_150405"))
	}

	fmt.Printf("Creating backup to: %s\n", backupPath)
	if err := bm.CreateBackup(ctx, backupPath); err != nil {
		fmt.Printf("Backup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backup created successfully: %s\n", backupPath)
}

func handleRestore(ctx context.Context, bm *database.BackupManager, backupPath string, clearData bool, conflictStr string, yes bool) {
	requirePath(backupPath)

	conflictAction, err := database.ParseConflictAction(conflictStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Restoring users from backup: %s\n", backupPath)
	if clearData {
		fmt.Println("Warning: Existing users will be deleted")
	}
	fmt.Printf("Conflict strategy: %s\n", conflictAction)

	if !yes && !confirm("Continue? (y/N): ") {
		fmt.Println("Operation cancelled")
		return
	}

	options := database.RestoreOptions{ClearExisting: clearData, OnConflict: conflictAction}
	if err := bm.RestoreBackup(ctx, backupPath, options); err != nil {
		fmt.Printf("Restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Users restored successfully")
}

func handleValidate(bm *database.BackupManager, backupPath string) {
	requirePath(backupPath)

	fmt.Printf("Validating backup file: %s\n", backupPath)
	if err := bm.ValidateBackup(backupPath); err != nil {
		fmt.Printf("Backup file validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Backup file validated successfully")
}

func handleInfo(bm *database.BackupManager, backupPath string) {
	requirePath(backupPath)

	info, err := bm.GetBackupInfo(backupPath)
	if err != nil {
		fmt.Printf("Failed to read backup file info: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Version: %s\n", info.Version)
	fmt.Printf("Created at: %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("User count: %d\n", info.UserCount)
}

func requirePath(backupPath string) {
	if backupPath == "" {
		fmt.Println("Error: Backup file path is required")
		os.Exit(1)
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

func showHelp() {
	fmt.Printf(`Gavlik Capital User Backup Tool

Usage:
  %[1]s -action=<action> [options]

Actions:
  backup    Export the users table
  restore   Import users from a backup file
  validate  Validate backup file
  info      Display backup file info

Options:
  -file=<path>          Backup file path
  -clear                Delete existing users before restore
  -conflict=<strategy>  Conflict resolution strategy: skip|replace|error
  -yes                  Do not ask for confirmation
  -help                 Display this help message

Examples:
  %[1]s -action=backup
  %[1]s -action=restore -file=./users.json -conflict=replace
  %[1]s -action=info -file=./users.json
`, os.Args[0])
}
