package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used to authenticate against the keygate REST API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// userByName looks up a user for the --user flag shared by the key commands.
func userByName(ctx context.Context, a *app, username string) (int64, error) {
	user, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("user %q not found", username)
	}
	return user.ID, nil
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		username      string
		name          string
		expiresInDays int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Generate a new API key for a user. The raw key is shown once and cannot be retrieved again.",
		Example: `  keygate key create --user alice --name "CI pipeline"
  keygate key create --user alice --name deploy --expires-in-days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(username, name, expiresInDays)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Username the key belongs to (required)")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable name for the key (required)")
	cmd.Flags().IntVar(&expiresInDays, "expires-in-days", 0, "Days until the key expires (0 = never)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runKeyCreate(username, name string, expiresInDays int) error {
	logger := newLogger("warn", "text")
	app, err := buildApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	userID, err := userByName(ctx, app, username)
	if err != nil {
		return err
	}

	var expiry *int
	if expiresInDays > 0 {
		expiry = &expiresInDays
	}

	created, err := app.keys.Create(ctx, userID, name, expiry)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  Key:  %s\n", created.Key)
	fmt.Printf("  Name: %s\n", created.Name)
	fmt.Printf("  User: %s\n", username)
	if created.ExpiresAt != nil {
		fmt.Printf("  Expires: %s\n", created.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		username   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List a user's active API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(username, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Username whose keys to list (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runKeyList(username string, jsonOutput bool) error {
	logger := newLogger("warn", "text")
	app, err := buildApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	userID, err := userByName(ctx, app, username)
	if err != nil {
		return err
	}

	keys, err := app.keys.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Printf("No active API keys for %q. Use 'keygate key create' to create one.\n", username)
		return nil
	}

	fmt.Printf("%-6s %-24s %-20s %-20s\n", "ID", "NAME", "EXPIRES", "LAST USED")
	fmt.Printf("%-6s %-24s %-20s %-20s\n", "--", "----", "-------", "---------")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format("2006-01-02")
		}
		lastUsed := "never"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-6d %-24s %-20s %-20s\n", k.ID, k.Name, expires, lastUsed)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	var (
		username string
		keyID    int64
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key by ID",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key. Revocation is irreversible.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(username, keyID)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Username the key belongs to (required)")
	cmd.Flags().Int64Var(&keyID, "id", 0, "Key ID to revoke (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runKeyRevoke(username string, keyID int64) error {
	logger := newLogger("warn", "text")
	app, err := buildApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()

	userID, err := userByName(ctx, app, username)
	if err != nil {
		return err
	}

	if _, err := app.keys.RevokeByID(ctx, keyID, userID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key %d\n", keyID)
	return nil
}
